// Package coc computes the cash-on-cash return of a rental purchase.
//
// All rate fields on Assumptions are fractions (0.05 means 5%). Stored and
// API-facing values are percentages; convert them with FromPercentages before
// calling Calculate.
package coc

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrZeroInvestment   = errors.New("coc: down payment and closing cost sum to zero")
	ErrInvalidLoanTerms = errors.New("coc: loan interest and loan term must be positive")
	ErrInvalidRate      = errors.New("coc: rate out of range")
	ErrInvalidPrice     = errors.New("coc: purchase price must be positive")
)

// Assumptions is the investor's underwriting bundle attached to a saved search.
type Assumptions struct {
	Insurance          float64 // flat, monthly
	Vacancy            float64
	PropertyManagement float64
	Capex              float64
	Repairs            float64
	Utilities          float64 // flat, monthly
	DownPayment        float64
	ClosingCost        float64
	LoanInterest       float64 // annual
	LoanMonths         int
	Additional         float64 // flat, monthly
}

// Percentages mirrors Assumptions with every rate expressed as 0-100.
type Percentages struct {
	Insurance          float64 `json:"insurance" validate:"gte=0"`
	Vacancy            float64 `json:"vacancy" validate:"gte=0,lte=100"`
	PropertyManagement float64 `json:"property_management" validate:"gte=0,lte=100"`
	Capex              float64 `json:"capex" validate:"gte=0,lte=100"`
	Repairs            float64 `json:"repairs" validate:"gte=0,lte=100"`
	Utilities          float64 `json:"utilities" validate:"gte=0"`
	DownPayment        float64 `json:"down_payment" validate:"gte=0,lte=100"`
	ClosingCost        float64 `json:"closing_cost" validate:"gte=0,lte=100"`
	LoanInterest       float64 `json:"loan_interest" validate:"gt=0,lte=100"`
	LoanMonths         int     `json:"loan_months" validate:"gt=0,lte=600"`
	Additional         float64 `json:"additional_monthly_expenses" validate:"gte=0"`
}

// FromPercentages converts the stored representation into fractions.
func FromPercentages(p Percentages) Assumptions {
	return Assumptions{
		Insurance:          p.Insurance,
		Vacancy:            p.Vacancy / 100,
		PropertyManagement: p.PropertyManagement / 100,
		Capex:              p.Capex / 100,
		Repairs:            p.Repairs / 100,
		Utilities:          p.Utilities,
		DownPayment:        p.DownPayment / 100,
		ClosingCost:        p.ClosingCost / 100,
		LoanInterest:       p.LoanInterest / 100,
		LoanMonths:         p.LoanMonths,
		Additional:         p.Additional,
	}
}

// Validate reports whether Calculate can run without dividing by zero.
func (a Assumptions) Validate() error {
	if a.DownPayment+a.ClosingCost == 0 {
		return ErrZeroInvestment
	}
	if a.LoanInterest <= 0 || a.LoanMonths <= 0 {
		return ErrInvalidLoanTerms
	}
	rates := []struct {
		name string
		v    float64
	}{
		{"vacancy", a.Vacancy},
		{"property_management", a.PropertyManagement},
		{"capex", a.Capex},
		{"repairs", a.Repairs},
		{"down_payment", a.DownPayment},
		{"closing_cost", a.ClosingCost},
		{"loan_interest", a.LoanInterest},
	}
	for _, r := range rates {
		if r.v < 0 || r.v > 1 || math.IsNaN(r.v) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidRate, r.name, r.v)
		}
	}
	if a.Insurance < 0 || a.Utilities < 0 || a.Additional < 0 {
		return fmt.Errorf("%w: flat monthly amounts must not be negative", ErrInvalidRate)
	}
	return nil
}

// Breakdown carries every intermediate of the calculation.
type Breakdown struct {
	Loan              float64 `json:"loan"`
	MonthlyInterest   float64 `json:"monthly_interest"`
	DebtService       float64 `json:"debt_service"`
	EffectiveIncome   float64 `json:"effective_income"`
	Expenses          float64 `json:"expenses"`
	CashFlow          float64 `json:"cash_flow"`
	InitialInvestment float64 `json:"initial_investment"`
	CashOnCash        float64 `json:"cash_on_cash"`
}

// Calculate returns the annualised cash-on-cash return as a percentage.
func Calculate(a Assumptions, price, monthlyTax, monthlyRent float64) (float64, error) {
	b, err := Compute(a, price, monthlyTax, monthlyRent)
	if err != nil {
		return 0, err
	}
	return b.CashOnCash, nil
}

// Compute runs the calculation and keeps the intermediates.
func Compute(a Assumptions, price, monthlyTax, monthlyRent float64) (Breakdown, error) {
	if err := a.Validate(); err != nil {
		return Breakdown{}, err
	}
	if price <= 0 || math.IsNaN(price) {
		return Breakdown{}, ErrInvalidPrice
	}

	var b Breakdown
	b.Loan = price * (1 - a.DownPayment)
	b.MonthlyInterest = a.LoanInterest / 12
	b.DebtService = b.Loan * (b.MonthlyInterest / (1 - math.Pow(1+b.MonthlyInterest, -float64(a.LoanMonths))))

	b.EffectiveIncome = monthlyRent * (1 - a.Vacancy)
	b.Expenses = monthlyTax +
		a.Insurance +
		a.PropertyManagement*b.EffectiveIncome +
		a.Capex*b.EffectiveIncome +
		a.Repairs*b.EffectiveIncome +
		a.Utilities +
		a.Additional

	b.CashFlow = monthlyRent - monthlyRent*a.Vacancy - b.Expenses - b.DebtService
	b.InitialInvestment = (a.DownPayment + a.ClosingCost) * price
	b.CashOnCash = b.CashFlow * 12 / b.InitialInvestment * 100
	return b, nil
}
