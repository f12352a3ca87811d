// Package memory implements an in-memory market repository, used by tests
// and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"krishilink/pkg/market"
)

// Repository provides an in-memory implementation of market.Repository.
// Listings keep their insertion order so LatestListings matches the
// newest-first contract of the document stores.
type Repository struct {
	mu       sync.RWMutex
	listings map[string]*market.Listing
	order    []string
	users    map[string]market.User
}

// New creates an empty in-memory repository.
func New() *Repository {
	return &Repository{
		listings: make(map[string]*market.Listing),
		users:    make(map[string]market.User),
	}
}

// Ping always succeeds.
func (r *Repository) Ping(ctx context.Context) error { return nil }

// CreateListing stores the listing under a fresh hex ObjectID with an empty
// interest sequence.
func (r *Repository) CreateListing(ctx context.Context, l market.Listing) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = primitive.NewObjectID().Hex()
	l.Interests = []market.Interest{}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	r.listings[l.ID] = &l
	r.order = append(r.order, l.ID)
	return l.ID, nil
}

// Listings returns all listings in insertion order.
func (r *Repository) Listings(ctx context.Context) ([]market.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]market.Listing, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, clone(r.listings[id]))
	}
	return out, nil
}

// LatestListings returns up to n listings, newest first.
func (r *Repository) LatestListings(ctx context.Context, n int) ([]market.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > len(r.order) {
		n = len(r.order)
	}
	out := make([]market.Listing, 0, n)
	for i := len(r.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, clone(r.listings[r.order[i]]))
	}
	return out, nil
}

// Listing retrieves a listing by ID.
func (r *Repository) Listing(ctx context.Context, id string) (market.Listing, error) {
	if err := validateID(id); err != nil {
		return market.Listing{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[id]
	if !ok {
		return market.Listing{}, market.ErrNotFound
	}
	return clone(l), nil
}

// ListingsByOwner returns all listings whose owner email matches exactly.
func (r *Repository) ListingsByOwner(ctx context.Context, email string) ([]market.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []market.Listing
	for _, id := range r.order {
		if l := r.listings[id]; l.Owner.Email == email {
			out = append(out, clone(l))
		}
	}
	return out, nil
}

// UpdateListing applies the non-nil fields of upd. A missing ID is a no-op
// reported through the matched count.
func (r *Repository) UpdateListing(ctx context.Context, id string, upd market.ListingUpdate) (int64, int64, error) {
	if err := validateID(id); err != nil {
		return 0, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return 0, 0, nil
	}
	if upd.Name != nil {
		l.Name = *upd.Name
	}
	if upd.Type != nil {
		l.Type = *upd.Type
	}
	if upd.PricePerUnit != nil {
		l.PricePerUnit = *upd.PricePerUnit
	}
	if upd.Unit != nil {
		l.Unit = *upd.Unit
	}
	if upd.Quantity != nil {
		l.Quantity = *upd.Quantity
	}
	if upd.Description != nil {
		l.Description = *upd.Description
	}
	if upd.Location != nil {
		l.Location = *upd.Location
	}
	if upd.Image != nil {
		l.Image = *upd.Image
	}
	return 1, 1, nil
}

// DeleteListing removes a listing. Deleting an absent ID succeeds with a
// zero deleted count.
func (r *Repository) DeleteListing(ctx context.Context, id string) (int64, error) {
	if err := validateID(id); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[id]; !ok {
		return 0, nil
	}
	delete(r.listings, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

// AddInterest appends the interest to the listing's sequence.
func (r *Repository) AddInterest(ctx context.Context, listingID string, in market.Interest) error {
	if err := validateID(listingID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[listingID]
	if !ok {
		return market.ErrNotFound
	}
	l.Interests = append(l.Interests, in)
	return nil
}

// ListingsWithInterestFrom returns listings holding at least one interest
// submitted by email, in insertion order.
func (r *Repository) ListingsWithInterestFrom(ctx context.Context, email string) ([]market.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []market.Listing
	for _, id := range r.order {
		l := r.listings[id]
		for _, in := range l.Interests {
			if in.UserEmail == email {
				out = append(out, clone(l))
				break
			}
		}
	}
	return out, nil
}

// DecideInterest transitions a pending interest under the repository lock,
// decrementing quantity when accepting. The lock makes the transition atomic,
// matching the single-update guarantee of the document stores.
func (r *Repository) DecideInterest(ctx context.Context, listingID, interestID string, status market.Status) error {
	if err := validateID(listingID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[listingID]
	if !ok {
		return market.ErrNotFound
	}
	for i := range l.Interests {
		if l.Interests[i].ID != interestID {
			continue
		}
		if l.Interests[i].Status != market.StatusPending {
			return market.ErrAlreadyDecided
		}
		l.Interests[i].Status = status
		if status == market.StatusAccepted {
			l.Quantity -= l.Interests[i].Quantity
		}
		return nil
	}
	return market.ErrNotFound
}

// UpsertUser registers a user once per email; re-submission returns the
// existing record untouched.
func (r *Repository) UpsertUser(ctx context.Context, u market.User) (market.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[u.Email]; ok {
		return existing, nil
	}
	u.ID = primitive.NewObjectID().Hex()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.users[u.Email] = u
	return u, nil
}

// UserByEmail retrieves a registered user.
func (r *Repository) UserByEmail(ctx context.Context, email string) (market.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[email]
	if !ok {
		return market.User{}, market.ErrNotFound
	}
	return u, nil
}

func validateID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return market.ErrInvalidID
	}
	return nil
}

func clone(l *market.Listing) market.Listing {
	out := *l
	out.Interests = append([]market.Interest(nil), l.Interests...)
	if l.Interests != nil && out.Interests == nil {
		out.Interests = []market.Interest{}
	}
	return out
}
