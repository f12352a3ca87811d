package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"krishilink/pkg/logger"
	"krishilink/pkg/market"
	"krishilink/pkg/otel"
)

// latestCacheKey holds the cached JSON for GET /crops/latest. Busted on any
// listing write.
const (
	latestCacheKey = "cache:crops:latest"
	latestCacheTTL = 30 * time.Second
	latestCount    = 6
)

// api holds the request handlers' dependencies.
type api struct {
	log    *logger.Logger
	repo   market.Repository
	flow   *market.Workflow
	rdb    *redis.Client
	tracer trace.Tracer
}

func newAPI(log *logger.Logger, repo market.Repository, rdb *redis.Client, tracer trace.Tracer) *api {
	return &api{
		log:    log,
		repo:   repo,
		flow:   market.NewWorkflow(repo),
		rdb:    rdb,
		tracer: tracer,
	}
}

func (a *api) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.traceMiddleware)

	r.HandleFunc("/", a.rootHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", a.healthHandler).Methods(http.MethodGet)

	r.HandleFunc("/users", a.registerUserHandler).Methods(http.MethodPost)
	r.HandleFunc("/users/{email}", a.getUserHandler).Methods(http.MethodGet)

	r.HandleFunc("/crops", a.createCropHandler).Methods(http.MethodPost)
	r.HandleFunc("/crops", a.listCropsHandler).Methods(http.MethodGet)
	r.HandleFunc("/crops/latest", a.latestCropsHandler).Methods(http.MethodGet)
	r.HandleFunc("/crops/{id}", a.getCropHandler).Methods(http.MethodGet)
	r.HandleFunc("/crops/{id}", a.updateCropHandler).Methods(http.MethodPut)
	r.HandleFunc("/crops/{id}", a.deleteCropHandler).Methods(http.MethodDelete)
	r.HandleFunc("/my-crops/{email}", a.myCropsHandler).Methods(http.MethodGet)

	r.HandleFunc("/interests", a.submitInterestHandler).Methods(http.MethodPost)
	r.HandleFunc("/my-interests/{email}", a.myInterestsHandler).Methods(http.MethodGet)
	r.HandleFunc("/interests/update", a.updateInterestHandler).Methods(http.MethodPut)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

func (a *api) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.InjectTracing(r.Context(), a.tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// insertResult reports a successful insert.
type insertResult struct {
	InsertedID string `json:"insertedId"`
}

// updateResult reports how many documents an update touched.
type updateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// deleteResult reports how many documents a delete removed.
type deleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (a *api) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("KrishiLink Server Running"))
}

// healthHandler pings the store.
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /health [get]
func (a *api) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := a.repo.Ping(ctx); err != nil {
		a.log.Error(ctx, "health ping", "error", err)
		respond(w, http.StatusInternalServerError, map[string]string{
			"status":  "ERROR",
			"message": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	respond(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Server and Database are running",
	})
}

type registerUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoURL"`
}

// registerUserHandler registers a user, returning the existing record when
// the email is already known.
// @Summary Register user
// @Accept json
// @Produce json
// @Param user body registerUserRequest true "User"
// @Success 200 {object} market.User
// @Router /users [post]
func (a *api) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "registerUserHandler")
	defer span.End()

	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.failMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		a.failMsg(w, http.StatusBadRequest, "email is required")
		return
	}
	u, err := a.repo.UpsertUser(ctx, market.User{Name: req.Name, Email: req.Email, PhotoURL: req.PhotoURL})
	if err != nil {
		a.fail(ctx, w, "register user", err)
		return
	}
	respond(w, http.StatusOK, u)
}

// getUserHandler fetches a registered user by email.
// @Summary Get user
// @Produce json
// @Param email path string true "Email"
// @Success 200 {object} market.User
// @Failure 404 {object} errorResponse
// @Router /users/{email} [get]
func (a *api) getUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getUserHandler")
	defer span.End()

	u, err := a.repo.UserByEmail(ctx, mux.Vars(r)["email"])
	if err != nil {
		a.fail(ctx, w, "get user", err)
		return
	}
	respond(w, http.StatusOK, u)
}

type createCropRequest struct {
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	PricePerUnit float64      `json:"pricePerUnit"`
	Unit         string       `json:"unit"`
	Quantity     *int         `json:"quantity"`
	Description  string       `json:"description"`
	Location     string       `json:"location"`
	Image        string       `json:"image"`
	Owner        market.Owner `json:"owner"`
}

func (req *createCropRequest) validate() string {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "name is required"
	case strings.TrimSpace(req.Owner.Email) == "":
		return "owner.ownerEmail is required"
	case req.Quantity == nil:
		return "quantity is required"
	case *req.Quantity < 0:
		return "quantity must not be negative"
	case req.PricePerUnit < 0:
		return "pricePerUnit must not be negative"
	}
	return ""
}

// createCropHandler creates a listing with an empty interest sequence.
// @Summary Create crop listing
// @Accept json
// @Produce json
// @Param crop body createCropRequest true "Listing"
// @Success 201 {object} insertResult
// @Failure 400 {object} errorResponse
// @Router /crops [post]
func (a *api) createCropHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createCropHandler")
	defer span.End()

	var req createCropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.failMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		a.failMsg(w, http.StatusBadRequest, msg)
		return
	}
	id, err := a.repo.CreateListing(ctx, market.Listing{
		Name:         req.Name,
		Type:         req.Type,
		PricePerUnit: req.PricePerUnit,
		Unit:         req.Unit,
		Quantity:     *req.Quantity,
		Description:  req.Description,
		Location:     req.Location,
		Image:        req.Image,
		Owner:        req.Owner,
	})
	if err != nil {
		a.fail(ctx, w, "create crop", err)
		return
	}
	a.bustLatestCache(ctx)
	respond(w, http.StatusCreated, insertResult{InsertedID: id})
}

// listCropsHandler returns all listings.
// @Summary List crops
// @Produce json
// @Success 200 {array} market.Listing
// @Router /crops [get]
func (a *api) listCropsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listCropsHandler")
	defer span.End()

	listings, err := a.repo.Listings(ctx)
	if err != nil {
		a.fail(ctx, w, "list crops", err)
		return
	}
	respond(w, http.StatusOK, listings)
}

// latestCropsHandler returns the newest listings, cached in redis.
// @Summary Latest crops
// @Produce json
// @Success 200 {array} market.Listing
// @Router /crops/latest [get]
func (a *api) latestCropsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "latestCropsHandler")
	defer span.End()

	if a.rdb != nil {
		if raw, err := a.rdb.Get(ctx, latestCacheKey).Result(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(raw))
			return
		}
	}
	listings, err := a.repo.LatestListings(ctx, latestCount)
	if err != nil {
		a.fail(ctx, w, "latest crops", err)
		return
	}
	buf, err := json.Marshal(listings)
	if err != nil {
		a.fail(ctx, w, "latest crops", err)
		return
	}
	if a.rdb != nil {
		if err := a.rdb.Set(ctx, latestCacheKey, buf, latestCacheTTL).Err(); err != nil {
			a.log.Warn(ctx, "cache latest crops", "error", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf)
}

// getCropHandler returns one listing by ID.
// @Summary Get crop
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} market.Listing
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /crops/{id} [get]
func (a *api) getCropHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getCropHandler")
	defer span.End()

	l, err := a.repo.Listing(ctx, mux.Vars(r)["id"])
	if err != nil {
		a.fail(ctx, w, "get crop", err)
		return
	}
	respond(w, http.StatusOK, l)
}

// myCropsHandler returns the listings owned by the given email.
// @Summary List own crops
// @Produce json
// @Param email path string true "Owner email"
// @Success 200 {array} market.Listing
// @Router /my-crops/{email} [get]
func (a *api) myCropsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "myCropsHandler")
	defer span.End()

	listings, err := a.repo.ListingsByOwner(ctx, mux.Vars(r)["email"])
	if err != nil {
		a.fail(ctx, w, "my crops", err)
		return
	}
	respond(w, http.StatusOK, listings)
}

// updateCropHandler applies a partial update to a listing. Owner and
// interests cannot be changed through this route.
// @Summary Update crop
// @Accept json
// @Produce json
// @Param id path string true "Listing ID"
// @Param crop body market.ListingUpdate true "Fields"
// @Success 200 {object} updateResult
// @Failure 400 {object} errorResponse
// @Router /crops/{id} [put]
func (a *api) updateCropHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateCropHandler")
	defer span.End()

	var upd market.ListingUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		a.failMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if upd.Quantity != nil && *upd.Quantity < 0 {
		a.failMsg(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}
	if upd.PricePerUnit != nil && *upd.PricePerUnit < 0 {
		a.failMsg(w, http.StatusBadRequest, "pricePerUnit must not be negative")
		return
	}
	matched, modified, err := a.repo.UpdateListing(ctx, mux.Vars(r)["id"], upd)
	if err != nil {
		a.fail(ctx, w, "update crop", err)
		return
	}
	a.bustLatestCache(ctx)
	respond(w, http.StatusOK, updateResult{MatchedCount: matched, ModifiedCount: modified})
}

// deleteCropHandler removes a listing. Deleting an unknown ID reports a zero
// count rather than an error.
// @Summary Delete crop
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} deleteResult
// @Failure 400 {object} errorResponse
// @Router /crops/{id} [delete]
func (a *api) deleteCropHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "deleteCropHandler")
	defer span.End()

	deleted, err := a.repo.DeleteListing(ctx, mux.Vars(r)["id"])
	if err != nil {
		a.fail(ctx, w, "delete crop", err)
		return
	}
	a.bustLatestCache(ctx)
	respond(w, http.StatusOK, deleteResult{DeletedCount: deleted})
}

// submitInterestHandler records a buyer's interest in a listing.
// @Summary Submit interest
// @Accept json
// @Produce json
// @Param interest body market.SubmitRequest true "Interest"
// @Success 201 {object} market.Interest
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /interests [post]
func (a *api) submitInterestHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "submitInterestHandler")
	defer span.End()

	var req market.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.failMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := a.flow.Submit(ctx, req)
	if err != nil {
		a.fail(ctx, w, "submit interest", err)
		return
	}
	respond(w, http.StatusCreated, in)
}

// myInterestsHandler lists the caller's interests across all listings,
// augmented with listing name and owner.
// @Summary List own interests
// @Produce json
// @Param email path string true "Buyer email"
// @Success 200 {array} market.UserInterest
// @Router /my-interests/{email} [get]
func (a *api) myInterestsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "myInterestsHandler")
	defer span.End()

	interests, err := a.flow.InterestsForUser(ctx, mux.Vars(r)["email"])
	if err != nil {
		a.fail(ctx, w, "my interests", err)
		return
	}
	respond(w, http.StatusOK, interests)
}

type updateInterestRequest struct {
	CropID     string        `json:"cropId"`
	InterestID string        `json:"interestId"`
	Status     market.Status `json:"status"`
}

// updateInterestHandler records the owner's accept/reject decision. Accepting
// decrements the listing quantity by the interest's requested amount, once.
// @Summary Decide interest
// @Accept json
// @Produce json
// @Param decision body updateInterestRequest true "Decision"
// @Success 200 {object} updateResult
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /interests/update [put]
func (a *api) updateInterestHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateInterestHandler")
	defer span.End()

	var req updateInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.failMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.flow.Decide(ctx, req.CropID, req.InterestID, req.Status); err != nil {
		a.fail(ctx, w, "update interest", err)
		return
	}
	a.bustLatestCache(ctx)
	respond(w, http.StatusOK, updateResult{MatchedCount: 1, ModifiedCount: 1})
}

// bustLatestCache drops the cached latest-crops response after any listing
// write. Cache errors are logged, never surfaced.
func (a *api) bustLatestCache(ctx context.Context) {
	if a.rdb == nil {
		return
	}
	if err := a.rdb.Del(ctx, latestCacheKey).Err(); err != nil {
		a.log.Warn(ctx, "bust latest cache", "error", err)
	}
}

func respond(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (a *api) failMsg(w http.ResponseWriter, code int, msg string) {
	respond(w, code, errorResponse{Status: "error", Message: msg})
}

// fail maps a domain error to its HTTP status and writes the structured
// error payload. Unexpected store failures are logged at error level.
func (a *api) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, market.ErrInvalidID), errors.Is(err, market.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, market.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, market.ErrAlreadyDecided):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		a.log.Error(ctx, op, "error", err)
	}
	respond(w, code, errorResponse{Status: "error", Message: err.Error()})
}
