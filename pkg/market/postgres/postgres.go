// Package postgres implements the market repository on PostgreSQL. Interests
// stay embedded in their listing row as a JSONB array so the decide+decrement
// step remains a single-row atomic update, matching the document store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"krishilink/pkg/market"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	seq BIGSERIAL,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	price_per_unit DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit TEXT NOT NULL DEFAULT '',
	quantity INT NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	image TEXT NOT NULL DEFAULT '',
	owner_name TEXT NOT NULL DEFAULT '',
	owner_email TEXT NOT NULL DEFAULT '',
	interests JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE,
	photo_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const listingColumns = "id, name, type, price_per_unit, unit, quantity, description, location, image, owner_name, owner_email, interests, created_at"

// Repository persists listings and users in PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository and ensures the schema exists.
func New(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateListing inserts the listing with an empty interest array. The ID is
// generated client-side in the same hex format as the document store.
func (r *Repository) CreateListing(ctx context.Context, l market.Listing) (string, error) {
	id := primitive.NewObjectID().Hex()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listings (id, name, type, price_per_unit, unit, quantity, description, location, image, owner_name, owner_email, interests)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'[]')`,
		id, l.Name, l.Type, l.PricePerUnit, l.Unit, l.Quantity, l.Description, l.Location, l.Image, l.Owner.Name, l.Owner.Email)
	if err != nil {
		return "", fmt.Errorf("insert listing: %w", err)
	}
	return id, nil
}

// Listings returns every listing in insertion order.
func (r *Repository) Listings(ctx context.Context) ([]market.Listing, error) {
	return r.query(ctx, "SELECT "+listingColumns+" FROM listings ORDER BY seq")
}

// LatestListings returns up to n listings, newest first.
func (r *Repository) LatestListings(ctx context.Context, n int) ([]market.Listing, error) {
	return r.query(ctx, "SELECT "+listingColumns+" FROM listings ORDER BY seq DESC LIMIT $1", n)
}

// Listing retrieves a listing by ID.
func (r *Repository) Listing(ctx context.Context, id string) (market.Listing, error) {
	if err := validateID(id); err != nil {
		return market.Listing{}, err
	}
	row := r.db.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE id=$1", id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return market.Listing{}, market.ErrNotFound
	}
	return l, err
}

// ListingsByOwner returns listings whose owner email matches exactly.
func (r *Repository) ListingsByOwner(ctx context.Context, email string) ([]market.Listing, error) {
	return r.query(ctx, "SELECT "+listingColumns+" FROM listings WHERE owner_email=$1 ORDER BY seq", email)
}

// UpdateListing sets only the supplied mutable fields. PostgreSQL reports a
// single affected-rows count, so matched and modified are the same number.
func (r *Repository) UpdateListing(ctx context.Context, id string, upd market.ListingUpdate) (int64, int64, error) {
	if err := validateID(id); err != nil {
		return 0, 0, err
	}
	var (
		sets []string
		args = []interface{}{id}
	)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, col+"=$"+strconv.Itoa(len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Type != nil {
		add("type", *upd.Type)
	}
	if upd.PricePerUnit != nil {
		add("price_per_unit", *upd.PricePerUnit)
	}
	if upd.Unit != nil {
		add("unit", *upd.Unit)
	}
	if upd.Quantity != nil {
		add("quantity", *upd.Quantity)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.Image != nil {
		add("image", *upd.Image)
	}
	if len(sets) == 0 {
		var n int64
		err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM listings WHERE id=$1", id).Scan(&n)
		return n, 0, err
	}
	res, err := r.db.ExecContext(ctx, "UPDATE listings SET "+strings.Join(sets, ", ")+" WHERE id=$1", args...)
	if err != nil {
		return 0, 0, fmt.Errorf("update listing: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, n, nil
}

// DeleteListing removes the listing; an absent ID yields a zero count.
func (r *Repository) DeleteListing(ctx context.Context, id string) (int64, error) {
	if err := validateID(id); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM listings WHERE id=$1", id)
	if err != nil {
		return 0, fmt.Errorf("delete listing: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AddInterest appends the interest to the listing's JSONB array.
func (r *Repository) AddInterest(ctx context.Context, listingID string, in market.Interest) error {
	if err := validateID(listingID); err != nil {
		return err
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode interest: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE listings SET interests = interests || $2::jsonb WHERE id=$1",
		listingID, string(raw))
	if err != nil {
		return fmt.Errorf("add interest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return market.ErrNotFound
	}
	return nil
}

// ListingsWithInterestFrom returns listings containing at least one interest
// submitted by email.
func (r *Repository) ListingsWithInterestFrom(ctx context.Context, email string) ([]market.Listing, error) {
	probe, err := json.Marshal([]map[string]string{{"userEmail": email}})
	if err != nil {
		return nil, err
	}
	return r.query(ctx,
		"SELECT "+listingColumns+" FROM listings WHERE interests @> $1::jsonb ORDER BY seq",
		string(probe))
}

// decideStmt rewrites the interests array and adjusts quantity in one
// statement. The WHERE clause only matches while the interest is still
// pending, so a repeat accept never decrements twice.
const decideStmt = `
UPDATE listings SET
	interests = (
		SELECT COALESCE(jsonb_agg(
			CASE WHEN elem->>'id' = $2
				THEN jsonb_set(elem, '{status}', to_jsonb($3::text))
				ELSE elem END
			ORDER BY ord), '[]'::jsonb)
		FROM jsonb_array_elements(interests) WITH ORDINALITY AS t(elem, ord)
	),
	quantity = quantity - CASE WHEN $3 = 'accepted' THEN COALESCE((
		SELECT (elem->>'quantity')::int
		FROM jsonb_array_elements(interests) elem
		WHERE elem->>'id' = $2), 0)
	ELSE 0 END
WHERE id = $1 AND EXISTS (
	SELECT 1 FROM jsonb_array_elements(interests) elem
	WHERE elem->>'id' = $2 AND elem->>'status' = 'pending'
)`

// DecideInterest transitions a pending interest to its final status,
// decrementing quantity in the same row update when accepting.
func (r *Repository) DecideInterest(ctx context.Context, listingID, interestID string, status market.Status) error {
	if err := validateID(listingID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, decideStmt, listingID, interestID, string(status))
	if err != nil {
		return fmt.Errorf("decide interest: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// The guarded update matched nothing; work out why.
	l, err := r.Listing(ctx, listingID)
	if err != nil {
		return err
	}
	for _, in := range l.Interests {
		if in.ID == interestID {
			if in.Status.Decided() {
				return market.ErrAlreadyDecided
			}
			return fmt.Errorf("decide interest %s: lost concurrent update", interestID)
		}
	}
	return market.ErrNotFound
}

// UpsertUser registers a user once per email. The no-op conflict update lets
// RETURNING hand back the existing row on repeat registration.
func (r *Repository) UpsertUser(ctx context.Context, u market.User) (market.User, error) {
	id := primitive.NewObjectID().Hex()
	var out market.User
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, name, email, photo_url) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (email) DO UPDATE SET email = excluded.email
		 RETURNING id, name, email, photo_url, created_at`,
		id, u.Name, u.Email, u.PhotoURL,
	).Scan(&out.ID, &out.Name, &out.Email, &out.PhotoURL, &out.CreatedAt)
	if err != nil {
		return market.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return out, nil
}

// UserByEmail retrieves a registered user.
func (r *Repository) UserByEmail(ctx context.Context, email string) (market.User, error) {
	var out market.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, photo_url, created_at FROM users WHERE email=$1", email,
	).Scan(&out.ID, &out.Name, &out.Email, &out.PhotoURL, &out.CreatedAt)
	if err == sql.ErrNoRows {
		return market.User{}, market.ErrNotFound
	}
	if err != nil {
		return market.User{}, fmt.Errorf("find user: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (market.Listing, error) {
	var (
		l   market.Listing
		raw []byte
	)
	err := row.Scan(&l.ID, &l.Name, &l.Type, &l.PricePerUnit, &l.Unit, &l.Quantity,
		&l.Description, &l.Location, &l.Image, &l.Owner.Name, &l.Owner.Email, &raw, &l.CreatedAt)
	if err != nil {
		return market.Listing{}, err
	}
	l.Interests = []market.Interest{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &l.Interests); err != nil {
			return market.Listing{}, fmt.Errorf("decode interests: %w", err)
		}
	}
	return l, nil
}

func (r *Repository) query(ctx context.Context, q string, args ...interface{}) ([]market.Listing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()
	out := []market.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func validateID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %q", market.ErrInvalidID, id)
	}
	return nil
}
