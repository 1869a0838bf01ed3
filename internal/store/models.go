package store

import (
	"time"

	"github.com/yourorg/ostrich-api/internal/coc"
)

const DefaultTier = "Tier 0"

type User struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	BillingID        string     `json:"billing_id"`
	AuthenticationID string     `json:"authentication_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	Active           bool       `json:"active"`
}

// EmailerInput is the writable part of a saved search. Assumption rates are
// percentages.
type EmailerInput struct {
	SearchParam string          `json:"search_param" validate:"required,max=200"`
	Notes       *string         `json:"notes,omitempty" validate:"omitempty,max=500"`
	Email       string          `json:"email" validate:"required,email"`
	Frequency   string          `json:"frequency" validate:"omitempty,oneof=daily weekly"`
	MinPrice    *float64        `json:"min_price,omitempty" validate:"omitempty,gte=0"`
	MaxPrice    *float64        `json:"max_price,omitempty" validate:"omitempty,gte=0"`
	Bedrooms    *int            `json:"no_bedrooms,omitempty" validate:"omitempty,gte=0,lte=20"`
	Bathrooms   *int            `json:"no_bathrooms,omitempty" validate:"omitempty,gte=0,lte=20"`
	Assumptions coc.Percentages `json:"assumptions"`
}

type Emailer struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
	EmailerInput
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Active    bool       `json:"active"`
}

// ListingData is one row of digest history.
type ListingData struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	EmailerID     int64     `json:"emailer_id"`
	ZPID          string    `json:"zpid"`
	PropertyKey   *string   `json:"property_key,omitempty"`
	StreetAddress *string   `json:"street_address,omitempty"`
	City          *string   `json:"city,omitempty"`
	State         *string   `json:"state,omitempty"`
	Zipcode       *string   `json:"zipcode,omitempty"`
	Bedrooms      *float64  `json:"bedrooms,omitempty"`
	Bathrooms     *float64  `json:"bathrooms,omitempty"`
	Price         *float64  `json:"price,omitempty"`
	Taxes         *float64  `json:"taxes,omitempty"`
	RentEstimate  *float64  `json:"rent_estimate,omitempty"`
	TimeOnZillow  *string   `json:"time_on_zillow,omitempty"`
	ImgSrc        *string   `json:"img_src,omitempty"`
	URL           *string   `json:"url,omitempty"`
	CashOnCash    *float64  `json:"cash_on_cash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
