package store

import (
	"context"
	"database/sql"
	"errors"
)

const emailerColumns = `id, user_id, search_param, notes, email, frequency, min_price, max_price,
    no_bedrooms, no_bathrooms, insurance, vacancy, property_management, capex, repairs,
    utilities, down_payment, closing_cost, loan_interest, loan_months,
    additional_monthly_expenses, created_at, updated_at, active`

func scanEmailer(row interface{ Scan(...any) error }) (Emailer, error) {
	var e Emailer
	a := &e.Assumptions
	err := row.Scan(
		&e.ID, &e.UserID, &e.SearchParam, &e.Notes, &e.Email, &e.Frequency, &e.MinPrice, &e.MaxPrice,
		&e.Bedrooms, &e.Bathrooms, &a.Insurance, &a.Vacancy, &a.PropertyManagement, &a.Capex, &a.Repairs,
		&a.Utilities, &a.DownPayment, &a.ClosingCost, &a.LoanInterest, &a.LoanMonths,
		&a.Additional, &e.CreatedAt, &e.UpdatedAt, &e.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Emailer{}, ErrNotFound
	}
	return e, err
}

func collectEmailers(rows *sql.Rows) ([]Emailer, error) {
	defer rows.Close()
	var out []Emailer
	for rows.Next() {
		e, err := scanEmailer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func frequencyOrDefault(f string) string {
	if f == "" {
		return "daily"
	}
	return f
}

func (s *Store) CreateEmailer(ctx context.Context, userID int64, in EmailerInput) (Emailer, error) {
	a := in.Assumptions
	return scanEmailer(s.DB.QueryRowContext(ctx, `
        INSERT INTO emailers (user_id, search_param, notes, email, frequency, min_price, max_price,
            no_bedrooms, no_bathrooms, insurance, vacancy, property_management, capex, repairs,
            utilities, down_payment, closing_cost, loan_interest, loan_months, additional_monthly_expenses)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
        RETURNING `+emailerColumns,
		userID, in.SearchParam, in.Notes, in.Email, frequencyOrDefault(in.Frequency), in.MinPrice, in.MaxPrice,
		in.Bedrooms, in.Bathrooms, a.Insurance, a.Vacancy, a.PropertyManagement, a.Capex, a.Repairs,
		a.Utilities, a.DownPayment, a.ClosingCost, a.LoanInterest, a.LoanMonths, a.Additional,
	))
}

// UpdateEmailer replaces the writable fields of an emailer owned by userID.
func (s *Store) UpdateEmailer(ctx context.Context, userID, id int64, in EmailerInput) (Emailer, error) {
	a := in.Assumptions
	return scanEmailer(s.DB.QueryRowContext(ctx, `
        UPDATE emailers SET search_param=$3, notes=$4, email=$5, frequency=$6, min_price=$7, max_price=$8,
            no_bedrooms=$9, no_bathrooms=$10, insurance=$11, vacancy=$12, property_management=$13,
            capex=$14, repairs=$15, utilities=$16, down_payment=$17, closing_cost=$18,
            loan_interest=$19, loan_months=$20, additional_monthly_expenses=$21, updated_at=now()
        WHERE id=$1 AND user_id=$2 AND active
        RETURNING `+emailerColumns,
		id, userID, in.SearchParam, in.Notes, in.Email, frequencyOrDefault(in.Frequency), in.MinPrice, in.MaxPrice,
		in.Bedrooms, in.Bathrooms, a.Insurance, a.Vacancy, a.PropertyManagement, a.Capex, a.Repairs,
		a.Utilities, a.DownPayment, a.ClosingCost, a.LoanInterest, a.LoanMonths, a.Additional,
	))
}

// DeactivateEmailer soft-deletes an emailer owned by userID.
func (s *Store) DeactivateEmailer(ctx context.Context, userID, id int64) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE emailers SET active=false, deleted_at=now(), updated_at=now() WHERE id=$1 AND user_id=$2 AND active`,
		id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetEmailer(ctx context.Context, userID, id int64) (Emailer, error) {
	return scanEmailer(s.DB.QueryRowContext(ctx,
		`SELECT `+emailerColumns+` FROM emailers WHERE id=$1 AND user_id=$2 AND active`, id, userID))
}

func (s *Store) ListEmailersForUser(ctx context.Context, userID int64) ([]Emailer, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+emailerColumns+` FROM emailers WHERE user_id=$1 AND active ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return collectEmailers(rows)
}

// ListActiveEmailers returns every active emailer, oldest first.
func (s *Store) ListActiveEmailers(ctx context.Context) ([]Emailer, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+emailerColumns+` FROM emailers WHERE active ORDER BY user_id, id`)
	if err != nil {
		return nil, err
	}
	return collectEmailers(rows)
}
