package market_test

import (
	"context"
	"errors"
	"testing"

	"krishilink/pkg/market"
	"krishilink/pkg/market/memory"
)

func createListing(t *testing.T, repo market.Repository, name string, qty int, owner market.Owner) string {
	t.Helper()
	id, err := repo.CreateListing(context.Background(), market.Listing{
		Name: name, Quantity: qty, Unit: "kg", Owner: owner,
	})
	if err != nil {
		t.Fatalf("create listing %s: %v", name, err)
	}
	return id
}

func TestSubmitForcesPendingStatus(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	wf := market.NewWorkflow(repo)
	id := createListing(t, repo, "Rice", 100, market.Owner{Name: "Karim", Email: "karim@example.com"})

	in, err := wf.Submit(ctx, market.SubmitRequest{
		CropID:    id,
		UserEmail: "buyer@example.com",
		UserName:  "Buyer",
		Quantity:  30,
		Status:    "accepted", // client-supplied status must be ignored
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if in.Status != market.StatusPending {
		t.Fatalf("status = %s, want pending", in.Status)
	}
	if in.ID == "" {
		t.Fatal("expected a generated interest id")
	}

	l, _ := repo.Listing(ctx, id)
	if len(l.Interests) != 1 {
		t.Fatalf("interest sequence length = %d, want 1", len(l.Interests))
	}
	if l.Interests[0].Status != market.StatusPending {
		t.Fatalf("stored status = %s, want pending", l.Interests[0].Status)
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	wf := market.NewWorkflow(memory.New())

	_, err := wf.Submit(ctx, market.SubmitRequest{CropID: "64a000000000000000000000", Quantity: 5})
	if !errors.Is(err, market.ErrValidation) {
		t.Fatalf("missing email: %v, want ErrValidation", err)
	}
	_, err = wf.Submit(ctx, market.SubmitRequest{CropID: "64a000000000000000000000", UserEmail: "b@example.com", Quantity: 0})
	if !errors.Is(err, market.ErrValidation) {
		t.Fatalf("zero quantity: %v, want ErrValidation", err)
	}
}

func TestSubmitUnknownListing(t *testing.T) {
	ctx := context.Background()
	wf := market.NewWorkflow(memory.New())

	_, err := wf.Submit(ctx, market.SubmitRequest{
		CropID:    "64a000000000000000000000",
		UserEmail: "buyer@example.com",
		Quantity:  5,
	})
	if !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestInterestsForUserAugmentation(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	wf := market.NewWorkflow(repo)

	karim := market.Owner{Name: "Karim", Email: "karim@example.com"}
	rahim := market.Owner{Name: "Rahim", Email: "rahim@example.com"}
	rice := createListing(t, repo, "Rice", 100, karim)
	jute := createListing(t, repo, "Jute", 50, rahim)

	mustSubmit := func(crop, email string, qty int) {
		t.Helper()
		if _, err := wf.Submit(ctx, market.SubmitRequest{CropID: crop, UserEmail: email, Quantity: qty}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	mustSubmit(rice, "buyer@example.com", 10)
	mustSubmit(rice, "other@example.com", 5)
	mustSubmit(jute, "buyer@example.com", 20)

	got, err := wf.InterestsForUser(ctx, "buyer@example.com")
	if err != nil {
		t.Fatalf("interests for user: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].CropName != "Rice" || got[0].OwnerName != "Karim" || got[0].OwnerEmail != "karim@example.com" {
		t.Fatalf("first augmentation wrong: %+v", got[0])
	}
	if got[1].CropName != "Jute" || got[1].OwnerName != "Rahim" {
		t.Fatalf("second augmentation wrong: %+v", got[1])
	}
	for _, ui := range got {
		if ui.UserEmail != "buyer@example.com" {
			t.Fatalf("foreign interest leaked: %+v", ui)
		}
	}
}

func TestAcceptDecrementsOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	wf := market.NewWorkflow(repo)
	rice := createListing(t, repo, "Rice", 100, market.Owner{Name: "Karim", Email: "karim@example.com"})

	in, err := wf.Submit(ctx, market.SubmitRequest{CropID: rice, UserEmail: "buyer@example.com", Quantity: 30})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := wf.Decide(ctx, rice, in.ID, market.StatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	l, _ := repo.Listing(ctx, rice)
	if l.Quantity != 70 {
		t.Fatalf("quantity = %d, want 70", l.Quantity)
	}
	if l.Interests[0].Status != market.StatusAccepted {
		t.Fatalf("status = %s, want accepted", l.Interests[0].Status)
	}

	if err := wf.Decide(ctx, rice, in.ID, market.StatusAccepted); !errors.Is(err, market.ErrAlreadyDecided) {
		t.Fatalf("repeat accept: %v, want ErrAlreadyDecided", err)
	}
	l, _ = repo.Listing(ctx, rice)
	if l.Quantity != 70 {
		t.Fatalf("quantity after repeat accept = %d, want 70", l.Quantity)
	}
}

func TestRejectLeavesQuantity(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	wf := market.NewWorkflow(repo)
	rice := createListing(t, repo, "Rice", 100, market.Owner{Name: "Karim", Email: "karim@example.com"})

	in, _ := wf.Submit(ctx, market.SubmitRequest{CropID: rice, UserEmail: "buyer@example.com", Quantity: 30})
	if err := wf.Decide(ctx, rice, in.ID, market.StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	l, _ := repo.Listing(ctx, rice)
	if l.Quantity != 100 {
		t.Fatalf("quantity = %d, want 100", l.Quantity)
	}
	if l.Interests[0].Status != market.StatusRejected {
		t.Fatalf("status = %s, want rejected", l.Interests[0].Status)
	}
}

func TestDecideValidation(t *testing.T) {
	ctx := context.Background()
	wf := market.NewWorkflow(memory.New())

	if err := wf.Decide(ctx, "64a000000000000000000000", "x", market.StatusPending); !errors.Is(err, market.ErrValidation) {
		t.Fatalf("pending decision: %v, want ErrValidation", err)
	}
	if err := wf.Decide(ctx, "64a000000000000000000000", "not-a-uuid", market.StatusAccepted); !errors.Is(err, market.ErrInvalidID) {
		t.Fatalf("bad interest id: %v, want ErrInvalidID", err)
	}
}
