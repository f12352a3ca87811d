// Package mongo implements the market repository on MongoDB, the system's
// primary store. Listings live in the crops collection with their interests
// embedded; users live in a separate users collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"krishilink/pkg/market"
)

// Repository persists listings and users in MongoDB.
type Repository struct {
	crops *driver.Collection
	users *driver.Collection
}

// New creates a repository over the given database, using the crops and
// users collections.
func New(db *driver.Database) *Repository {
	return &Repository{
		crops: db.Collection("crops"),
		users: db.Collection("users"),
	}
}

// Ping verifies the server is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.crops.Database().Client().Ping(ctx, readpref.Primary())
}

type listingDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Type         string             `bson:"type"`
	PricePerUnit float64            `bson:"pricePerUnit"`
	Unit         string             `bson:"unit"`
	Quantity     int                `bson:"quantity"`
	Description  string             `bson:"description"`
	Location     string             `bson:"location"`
	Image        string             `bson:"image"`
	Owner        market.Owner       `bson:"owner"`
	Interests    []market.Interest  `bson:"interests"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (d listingDoc) toListing() market.Listing {
	interests := d.Interests
	if interests == nil {
		interests = []market.Interest{}
	}
	return market.Listing{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Type:         d.Type,
		PricePerUnit: d.PricePerUnit,
		Unit:         d.Unit,
		Quantity:     d.Quantity,
		Description:  d.Description,
		Location:     d.Location,
		Image:        d.Image,
		Owner:        d.Owner,
		Interests:    interests,
		CreatedAt:    d.CreatedAt,
	}
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	PhotoURL  string             `bson:"photoURL"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d userDoc) toUser() market.User {
	return market.User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		PhotoURL:  d.PhotoURL,
		CreatedAt: d.CreatedAt,
	}
}

// CreateListing inserts the listing with an empty interest sequence and
// returns the generated hex ObjectID.
func (r *Repository) CreateListing(ctx context.Context, l market.Listing) (string, error) {
	doc := listingDoc{
		Name:         l.Name,
		Type:         l.Type,
		PricePerUnit: l.PricePerUnit,
		Unit:         l.Unit,
		Quantity:     l.Quantity,
		Description:  l.Description,
		Location:     l.Location,
		Image:        l.Image,
		Owner:        l.Owner,
		Interests:    []market.Interest{},
		CreatedAt:    time.Now().UTC(),
	}
	res, err := r.crops.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert listing: %w", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

// Listings returns every listing in natural (insertion) order.
func (r *Repository) Listings(ctx context.Context) ([]market.Listing, error) {
	return r.find(ctx, bson.M{})
}

// LatestListings returns up to n listings, newest first by ObjectID.
func (r *Repository) LatestListings(ctx context.Context, n int) ([]market.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(n))
	return r.find(ctx, bson.M{}, opts)
}

// Listing retrieves a listing by hex ObjectID.
func (r *Repository) Listing(ctx context.Context, id string) (market.Listing, error) {
	oid, err := parseID(id)
	if err != nil {
		return market.Listing{}, err
	}
	var doc listingDoc
	if err := r.crops.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == driver.ErrNoDocuments {
			return market.Listing{}, market.ErrNotFound
		}
		return market.Listing{}, fmt.Errorf("find listing: %w", err)
	}
	return doc.toListing(), nil
}

// ListingsByOwner returns listings whose owner email matches exactly.
func (r *Repository) ListingsByOwner(ctx context.Context, email string) ([]market.Listing, error) {
	return r.find(ctx, bson.M{"owner.ownerEmail": email})
}

// UpdateListing sets only the supplied mutable fields. An unmatched ID is
// reported through a zero matched count, not an error.
func (r *Repository) UpdateListing(ctx context.Context, id string, upd market.ListingUpdate) (int64, int64, error) {
	oid, err := parseID(id)
	if err != nil {
		return 0, 0, err
	}
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Type != nil {
		set["type"] = *upd.Type
	}
	if upd.PricePerUnit != nil {
		set["pricePerUnit"] = *upd.PricePerUnit
	}
	if upd.Unit != nil {
		set["unit"] = *upd.Unit
	}
	if upd.Quantity != nil {
		set["quantity"] = *upd.Quantity
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.Image != nil {
		set["image"] = *upd.Image
	}
	if len(set) == 0 {
		n, err := r.crops.CountDocuments(ctx, bson.M{"_id": oid})
		return n, 0, err
	}
	res, err := r.crops.UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return 0, 0, fmt.Errorf("update listing: %w", err)
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

// DeleteListing removes the listing; deleting an absent ID succeeds with a
// zero deleted count.
func (r *Repository) DeleteListing(ctx context.Context, id string) (int64, error) {
	oid, err := parseID(id)
	if err != nil {
		return 0, err
	}
	res, err := r.crops.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, fmt.Errorf("delete listing: %w", err)
	}
	return res.DeletedCount, nil
}

// AddInterest appends the interest to the listing's embedded sequence.
func (r *Repository) AddInterest(ctx context.Context, listingID string, in market.Interest) error {
	oid, err := parseID(listingID)
	if err != nil {
		return err
	}
	res, err := r.crops.UpdateByID(ctx, oid, bson.M{"$push": bson.M{"interests": in}})
	if err != nil {
		return fmt.Errorf("add interest: %w", err)
	}
	if res.MatchedCount == 0 {
		return market.ErrNotFound
	}
	return nil
}

// ListingsWithInterestFrom returns listings containing at least one interest
// submitted by email.
func (r *Repository) ListingsWithInterestFrom(ctx context.Context, email string) ([]market.Listing, error) {
	return r.find(ctx, bson.M{"interests.userEmail": email})
}

// DecideInterest flips a pending interest to its final status in a single
// document update. The filter matches only while the interest is still
// pending, and an accept subtracts the interest's quantity in the same
// pipeline, so a repeat accept can never decrement twice.
func (r *Repository) DecideInterest(ctx context.Context, listingID, interestID string, status market.Status) error {
	oid, err := parseID(listingID)
	if err != nil {
		return err
	}
	filter := bson.M{
		"_id": oid,
		"interests": bson.M{"$elemMatch": bson.M{
			"id":     interestID,
			"status": market.StatusPending,
		}},
	}

	var update interface{}
	if status == market.StatusAccepted {
		requested := bson.M{"$let": bson.M{
			"vars": bson.M{"match": bson.M{"$first": bson.M{"$filter": bson.M{
				"input": "$interests",
				"as":    "i",
				"cond":  bson.M{"$eq": bson.A{"$$i.id", interestID}},
			}}}},
			"in": bson.M{"$ifNull": bson.A{"$$match.quantity", 0}},
		}}
		// Both $set expressions evaluate against the pre-update document,
		// so quantity sees the interest before its status flips.
		update = bson.A{bson.M{"$set": bson.M{
			"quantity":  bson.M{"$subtract": bson.A{"$quantity", requested}},
			"interests": setStatusExpr(interestID, status),
		}}}
	} else {
		update = bson.M{"$set": bson.M{"interests.$.status": status}}
	}

	res, err := r.crops.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("decide interest: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return r.classifyDecideMiss(ctx, oid, interestID)
}

// setStatusExpr rewrites the interests array, flipping the status of the
// element whose id matches.
func setStatusExpr(interestID string, status market.Status) bson.M {
	return bson.M{"$map": bson.M{
		"input": "$interests",
		"as":    "i",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$$i.id", interestID}},
			bson.M{"$mergeObjects": bson.A{"$$i", bson.M{"status": status}}},
			"$$i",
		}},
	}}
}

// classifyDecideMiss distinguishes why the conditional update matched
// nothing: missing listing, missing interest, or an interest that was
// already decided.
func (r *Repository) classifyDecideMiss(ctx context.Context, oid primitive.ObjectID, interestID string) error {
	var doc listingDoc
	if err := r.crops.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == driver.ErrNoDocuments {
			return market.ErrNotFound
		}
		return fmt.Errorf("decide interest: %w", err)
	}
	for _, in := range doc.Interests {
		if in.ID == interestID {
			if in.Status.Decided() {
				return market.ErrAlreadyDecided
			}
			return fmt.Errorf("decide interest %s: lost concurrent update", interestID)
		}
	}
	return market.ErrNotFound
}

// UpsertUser registers a user once per email. A repeat registration returns
// the stored record unchanged.
func (r *Repository) UpsertUser(ctx context.Context, u market.User) (market.User, error) {
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Name:      u.Name,
		Email:     u.Email,
		PhotoURL:  u.PhotoURL,
		CreatedAt: time.Now().UTC(),
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var out userDoc
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"email": u.Email},
		bson.M{"$setOnInsert": doc},
		opts,
	).Decode(&out)
	if err != nil {
		return market.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return out.toUser(), nil
}

// UserByEmail retrieves a registered user.
func (r *Repository) UserByEmail(ctx context.Context, email string) (market.User, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if err == driver.ErrNoDocuments {
			return market.User{}, market.ErrNotFound
		}
		return market.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

func (r *Repository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]market.Listing, error) {
	cur, err := r.crops.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	defer cur.Close(ctx)
	var docs []listingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	out := make([]market.Listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toListing())
	}
	return out, nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", market.ErrInvalidID, id)
	}
	return oid, nil
}
