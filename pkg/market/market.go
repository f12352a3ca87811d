// Package market defines the crop marketplace domain: listings, buyer
// interests, and the accept/reject workflow.
package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an Interest.
type Status string

// Valid interest statuses. Every interest starts as pending and is decided
// at most once.
const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Decided reports whether s is a final owner decision.
func (s Status) Decided() bool {
	return s == StatusAccepted || s == StatusRejected
}

// User is a registered account, keyed by email.
type User struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	PhotoURL  string    `json:"photoURL" bson:"photoURL"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Owner identifies the farmer who created a listing.
type Owner struct {
	Name  string `json:"ownerName" bson:"ownerName"`
	Email string `json:"ownerEmail" bson:"ownerEmail"`
}

// Interest is a buyer's intent to purchase a quantity from a listing. It is
// embedded in exactly one listing's interest sequence.
type Interest struct {
	ID        string `json:"id" bson:"id"`
	CropID    string `json:"cropId" bson:"cropId"`
	UserEmail string `json:"userEmail" bson:"userEmail"`
	UserName  string `json:"userName" bson:"userName"`
	Quantity  int    `json:"quantity" bson:"quantity"`
	Message   string `json:"message" bson:"message"`
	Status    Status `json:"status" bson:"status"`
}

// Listing is a crop offered for sale. Quantity is the remaining stock and is
// decremented when an interest is accepted.
type Listing struct {
	ID           string     `json:"id" bson:"_id,omitempty"`
	Name         string     `json:"name" bson:"name"`
	Type         string     `json:"type" bson:"type"`
	PricePerUnit float64    `json:"pricePerUnit" bson:"pricePerUnit"`
	Unit         string     `json:"unit" bson:"unit"`
	Quantity     int        `json:"quantity" bson:"quantity"`
	Description  string     `json:"description" bson:"description"`
	Location     string     `json:"location" bson:"location"`
	Image        string     `json:"image" bson:"image"`
	Owner        Owner      `json:"owner" bson:"owner"`
	Interests    []Interest `json:"interests" bson:"interests"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
}

// ListingUpdate carries the mutable listing fields for a partial update.
// Nil fields are left untouched; owner and interests are never updated
// through this path.
type ListingUpdate struct {
	Name         *string  `json:"name"`
	Type         *string  `json:"type"`
	PricePerUnit *float64 `json:"pricePerUnit"`
	Unit         *string  `json:"unit"`
	Quantity     *int     `json:"quantity"`
	Description  *string  `json:"description"`
	Location     *string  `json:"location"`
	Image        *string  `json:"image"`
}

// UserInterest is an interest augmented with fields denormalized from its
// parent listing, for the per-buyer overview.
type UserInterest struct {
	Interest
	CropName   string `json:"cropName"`
	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail"`
}

// Domain errors. Store implementations return these so handlers can map them
// to HTTP status codes without knowing the backend.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidID      = errors.New("invalid identifier")
	ErrAlreadyDecided = errors.New("interest already decided")
	ErrValidation     = errors.New("validation failed")
)

// Repository defines behavior for persisting listings and users.
type Repository interface {
	Ping(ctx context.Context) error

	CreateListing(ctx context.Context, l Listing) (string, error)
	Listings(ctx context.Context) ([]Listing, error)
	LatestListings(ctx context.Context, n int) ([]Listing, error)
	Listing(ctx context.Context, id string) (Listing, error)
	ListingsByOwner(ctx context.Context, email string) ([]Listing, error)
	UpdateListing(ctx context.Context, id string, upd ListingUpdate) (matched, modified int64, err error)
	DeleteListing(ctx context.Context, id string) (deleted int64, err error)

	AddInterest(ctx context.Context, listingID string, in Interest) error
	ListingsWithInterestFrom(ctx context.Context, email string) ([]Listing, error)
	// DecideInterest transitions a pending interest to the given final
	// status as a single atomic document update. When accepting, the
	// listing quantity is decremented by the interest's requested quantity
	// in the same update, so a repeat accept can never decrement twice.
	DecideInterest(ctx context.Context, listingID, interestID string, status Status) error

	UpsertUser(ctx context.Context, u User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
}

// SubmitRequest is the input to Workflow.Submit.
type SubmitRequest struct {
	CropID    string `json:"cropId"`
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
	Quantity  int    `json:"quantity"`
	Message   string `json:"message"`
	// Status is accepted from clients for wire compatibility but ignored:
	// every interest starts as pending.
	Status string `json:"status"`
}

// Workflow implements the interest lifecycle on top of a Repository.
type Workflow struct {
	repo  Repository
	newID func() string
}

// NewWorkflow creates a workflow backed by repo.
func NewWorkflow(repo Repository) *Workflow {
	return &Workflow{repo: repo, newID: uuid.NewString}
}

// Submit validates req, assigns a fresh interest ID, and appends the interest
// to the target listing. The initial status is always pending regardless of
// what the client sent.
func (wf *Workflow) Submit(ctx context.Context, req SubmitRequest) (Interest, error) {
	if strings.TrimSpace(req.UserEmail) == "" {
		return Interest{}, fmt.Errorf("%w: userEmail is required", ErrValidation)
	}
	if req.Quantity <= 0 {
		return Interest{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	in := Interest{
		ID:        wf.newID(),
		CropID:    req.CropID,
		UserEmail: req.UserEmail,
		UserName:  req.UserName,
		Quantity:  req.Quantity,
		Message:   req.Message,
		Status:    StatusPending,
	}
	if err := wf.repo.AddInterest(ctx, req.CropID, in); err != nil {
		return Interest{}, err
	}
	return in, nil
}

// InterestsForUser returns every interest submitted by email across all
// listings, each augmented with its parent listing's name and owner. Order is
// listing scan order, then interest order within each listing.
func (wf *Workflow) InterestsForUser(ctx context.Context, email string) ([]UserInterest, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	listings, err := wf.repo.ListingsWithInterestFrom(ctx, email)
	if err != nil {
		return nil, err
	}
	out := make([]UserInterest, 0, len(listings))
	for _, l := range listings {
		for _, in := range l.Interests {
			if in.UserEmail != email {
				continue
			}
			out = append(out, UserInterest{
				Interest:   in,
				CropName:   l.Name,
				OwnerName:  l.Owner.Name,
				OwnerEmail: l.Owner.Email,
			})
		}
	}
	return out, nil
}

// Decide records the owner's decision on a pending interest. Accepting
// decrements the listing quantity by the interest's requested quantity;
// rejecting leaves it unchanged. Deciding an already-decided interest fails
// with ErrAlreadyDecided and never decrements again.
func (wf *Workflow) Decide(ctx context.Context, cropID, interestID string, status Status) error {
	if !status.Decided() {
		return fmt.Errorf("%w: status must be %q or %q", ErrValidation, StatusAccepted, StatusRejected)
	}
	if _, err := uuid.Parse(interestID); err != nil {
		return fmt.Errorf("%w: interest id %q", ErrInvalidID, interestID)
	}
	return wf.repo.DecideInterest(ctx, cropID, interestID, status)
}
