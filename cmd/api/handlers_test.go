package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"krishilink/pkg/logger"
	"krishilink/pkg/market"
	"krishilink/pkg/market/memory"
	"krishilink/pkg/otel"
)

func newTestAPI(t *testing.T) *api {
	t.Helper()
	log, err := logger.New("krishilink-test", otel.GetTraceID)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return newAPI(log, memory.New(), nil, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createCrop(t *testing.T, h http.Handler, name string, qty int) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/crops", map[string]interface{}{
		"name":         name,
		"type":         "grain",
		"pricePerUnit": 2.5,
		"unit":         "kg",
		"quantity":     qty,
		"owner":        map[string]string{"ownerName": "Karim", "ownerEmail": "karim@example.com"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create crop: status %d body %s", rec.Code, rec.Body)
	}
	var res insertResult
	decode(t, rec, &res)
	if res.InsertedID == "" {
		t.Fatal("empty insertedId")
	}
	return res.InsertedID
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t).routes()
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateCropValidation(t *testing.T) {
	h := newTestAPI(t).routes()
	rec := doJSON(t, h, http.MethodPost, "/crops", map[string]interface{}{
		"quantity": 10,
		"owner":    map[string]string{"ownerEmail": "karim@example.com"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var res errorResponse
	decode(t, rec, &res)
	if res.Status != "error" || res.Message == "" {
		t.Fatalf("unexpected error payload: %+v", res)
	}
}

func TestCropLifecycle(t *testing.T) {
	h := newTestAPI(t).routes()
	id := createCrop(t, h, "Rice", 100)

	rec := doJSON(t, h, http.MethodGet, "/crops/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	var l market.Listing
	decode(t, rec, &l)
	if l.Name != "Rice" || l.Quantity != 100 || len(l.Interests) != 0 {
		t.Fatalf("unexpected listing: %+v", l)
	}

	rec = doJSON(t, h, http.MethodGet, "/crops/not-an-id", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/crops/64a000000000000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/crops/64a000000000000000000000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete unknown: status %d, want 200", rec.Code)
	}
	var del deleteResult
	decode(t, rec, &del)
	if del.DeletedCount != 0 {
		t.Fatalf("deletedCount = %d, want 0", del.DeletedCount)
	}
}

func TestInterestFlow(t *testing.T) {
	h := newTestAPI(t).routes()
	id := createCrop(t, h, "Rice", 100)

	rec := doJSON(t, h, http.MethodPost, "/interests", map[string]interface{}{
		"cropId":    id,
		"userEmail": "buyer@example.com",
		"userName":  "Buyer",
		"quantity":  30,
		"message":   "interested",
		"status":    "accepted", // must be ignored
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body)
	}
	var in market.Interest
	decode(t, rec, &in)
	if in.Status != market.StatusPending {
		t.Fatalf("status = %s, want pending", in.Status)
	}

	rec = doJSON(t, h, http.MethodPut, "/interests/update", map[string]string{
		"cropId":     id,
		"interestId": in.ID,
		"status":     "accepted",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status %d body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/crops/"+id, nil)
	var l market.Listing
	decode(t, rec, &l)
	if l.Quantity != 70 {
		t.Fatalf("quantity = %d, want 70", l.Quantity)
	}
	if len(l.Interests) != 1 || l.Interests[0].Status != market.StatusAccepted {
		t.Fatalf("unexpected interests: %+v", l.Interests)
	}

	// A second accept is rejected and does not decrement again.
	rec = doJSON(t, h, http.MethodPut, "/interests/update", map[string]string{
		"cropId":     id,
		"interestId": in.ID,
		"status":     "accepted",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("repeat accept: status %d, want 409", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/crops/"+id, nil)
	decode(t, rec, &l)
	if l.Quantity != 70 {
		t.Fatalf("quantity after repeat accept = %d, want 70", l.Quantity)
	}
}

func TestSubmitInterestUnknownCrop(t *testing.T) {
	h := newTestAPI(t).routes()
	rec := doJSON(t, h, http.MethodPost, "/interests", map[string]interface{}{
		"cropId":    "64a000000000000000000000",
		"userEmail": "buyer@example.com",
		"quantity":  5,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMyInterests(t *testing.T) {
	h := newTestAPI(t).routes()
	rice := createCrop(t, h, "Rice", 100)
	jute := createCrop(t, h, "Jute", 50)

	for _, crop := range []string{rice, jute} {
		rec := doJSON(t, h, http.MethodPost, "/interests", map[string]interface{}{
			"cropId":    crop,
			"userEmail": "buyer@example.com",
			"quantity":  5,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit: status %d", rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/my-interests/buyer@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []market.UserInterest
	decode(t, rec, &got)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].CropName != "Rice" || got[1].CropName != "Jute" {
		t.Fatalf("augmentation wrong: %+v", got)
	}
	if got[0].OwnerEmail != "karim@example.com" {
		t.Fatalf("owner email wrong: %+v", got[0])
	}
}

func TestRegisterUserTwice(t *testing.T) {
	h := newTestAPI(t).routes()

	rec := doJSON(t, h, http.MethodPost, "/users", map[string]string{
		"name": "Karim", "email": "karim@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d", rec.Code)
	}
	var first market.User
	decode(t, rec, &first)

	rec = doJSON(t, h, http.MethodPost, "/users", map[string]string{
		"name": "Impostor", "email": "karim@example.com",
	})
	var second market.User
	decode(t, rec, &second)
	if second.ID != first.ID || second.Name != "Karim" {
		t.Fatalf("repeat registration replaced record: %+v", second)
	}
}

func TestLatestCrops(t *testing.T) {
	h := newTestAPI(t).routes()
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, n := range names {
		createCrop(t, h, n, 1)
	}

	rec := doJSON(t, h, http.MethodGet, "/crops/latest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []market.Listing
	decode(t, rec, &got)
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}
	if got[0].Name != "g" || got[5].Name != "b" {
		t.Fatalf("ordering wrong: %s ... %s", got[0].Name, got[5].Name)
	}
}
