package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("store: not found")

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id                BIGSERIAL PRIMARY KEY,
            email             TEXT NOT NULL,
            billing_id        TEXT NOT NULL DEFAULT 'Tier 0',
            authentication_id TEXT NOT NULL,
            created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at        TIMESTAMPTZ,
            deleted_at        TIMESTAMPTZ,
            active            BOOLEAN NOT NULL DEFAULT true
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_authentication_id ON users(authentication_id);`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(lower(email));`,
		`CREATE TABLE IF NOT EXISTS emailers (
            id                          BIGSERIAL PRIMARY KEY,
            user_id                     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            search_param                TEXT NOT NULL,
            notes                       TEXT,
            email                       TEXT NOT NULL,
            frequency                   TEXT NOT NULL DEFAULT 'daily',
            min_price                   DOUBLE PRECISION,
            max_price                   DOUBLE PRECISION,
            no_bedrooms                 INTEGER,
            no_bathrooms                INTEGER,
            insurance                   DOUBLE PRECISION NOT NULL,
            vacancy                     DOUBLE PRECISION NOT NULL,
            property_management         DOUBLE PRECISION NOT NULL,
            capex                       DOUBLE PRECISION NOT NULL,
            repairs                     DOUBLE PRECISION NOT NULL,
            utilities                   DOUBLE PRECISION NOT NULL,
            down_payment                DOUBLE PRECISION NOT NULL,
            closing_cost                DOUBLE PRECISION NOT NULL,
            loan_interest               DOUBLE PRECISION NOT NULL,
            loan_months                 INTEGER NOT NULL,
            additional_monthly_expenses DOUBLE PRECISION NOT NULL DEFAULT 0,
            created_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at                  TIMESTAMPTZ,
            deleted_at                  TIMESTAMPTZ,
            active                      BOOLEAN NOT NULL DEFAULT true
        );`,
		`CREATE INDEX IF NOT EXISTS idx_emailers_user_active ON emailers(user_id) WHERE active;`,
		`CREATE TABLE IF NOT EXISTS listing_data (
            id              BIGSERIAL PRIMARY KEY,
            user_id         BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            emailer_id      BIGINT NOT NULL REFERENCES emailers(id) ON DELETE CASCADE,
            zpid            TEXT NOT NULL,
            property_key    TEXT,
            street_address  TEXT,
            city            TEXT,
            state           TEXT,
            zipcode         TEXT,
            bedrooms        DOUBLE PRECISION,
            bathrooms       DOUBLE PRECISION,
            price           DOUBLE PRECISION,
            taxes           DOUBLE PRECISION,
            rent_estimate   DOUBLE PRECISION,
            time_on_zillow  TEXT,
            img_src         TEXT,
            url             TEXT,
            cash_on_cash    DOUBLE PRECISION,
            created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_listing_data_emailer ON listing_data(emailer_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_listing_data_property_key ON listing_data(property_key);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
