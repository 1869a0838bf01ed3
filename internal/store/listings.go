package store

import (
	"context"
	"errors"
)

func (s *Store) InsertListingData(ctx context.Context, in ListingData) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("nil db")
	}
	var id int64
	err := s.DB.QueryRowContext(ctx, `
        INSERT INTO listing_data (user_id, emailer_id, zpid, property_key, street_address, city, state, zipcode,
            bedrooms, bathrooms, price, taxes, rent_estimate, time_on_zillow, img_src, url, cash_on_cash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING id`,
		in.UserID, in.EmailerID, in.ZPID, in.PropertyKey, in.StreetAddress, in.City, in.State, in.Zipcode,
		in.Bedrooms, in.Bathrooms, in.Price, in.Taxes, in.RentEstimate, in.TimeOnZillow, in.ImgSrc, in.URL, in.CashOnCash,
	).Scan(&id)
	return id, err
}

// ListListingData returns the newest history rows for an emailer owned by
// userID.
func (s *Store) ListListingData(ctx context.Context, userID, emailerID int64, limit int) ([]ListingData, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, user_id, emailer_id, zpid, property_key, street_address, city, state, zipcode,
            bedrooms, bathrooms, price, taxes, rent_estimate, time_on_zillow, img_src, url, cash_on_cash, created_at
        FROM listing_data
        WHERE user_id=$1 AND emailer_id=$2
        ORDER BY created_at DESC, id DESC
        LIMIT $3`, userID, emailerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ListingData
	for rows.Next() {
		var d ListingData
		if err := rows.Scan(&d.ID, &d.UserID, &d.EmailerID, &d.ZPID, &d.PropertyKey, &d.StreetAddress, &d.City, &d.State, &d.Zipcode,
			&d.Bedrooms, &d.Bathrooms, &d.Price, &d.Taxes, &d.RentEstimate, &d.TimeOnZillow, &d.ImgSrc, &d.URL, &d.CashOnCash, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
