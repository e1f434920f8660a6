package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kidboost.app/internal/audit"
	"kidboost.app/internal/auth"
	"kidboost.app/internal/events"
	"kidboost.app/internal/family"
	"kidboost.app/internal/obs"
	"kidboost.app/internal/storage"
)

// ReadyProbe is a simple readiness check, e.g. a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the identity and family services.
type API struct {
	router     chi.Router
	readyProbe ReadyProbe
	version    string

	auth    *auth.Service
	family  family.Service
	avatars *storage.AvatarStore
	events  *events.Bus

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, authSvc *auth.Service, familySvc family.Service, avatars *storage.AvatarStore, bus *events.Bus) *API {
	a := &API{
		router:     chi.NewRouter(),
		readyProbe: rp,
		version:    version,
		auth:       authSvc,
		family:     familySvc,
		avatars:    avatars,
		events:     bus,
		rateBurst:  20,
		ratePerSec: 10,
	}

	r := a.router

	// health/ready/info
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)

	// Prometheus metrics
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/signup", a.signup)
		r.Post("/confirm", a.confirmSignup)
		r.Post("/login", a.login)
		r.Post("/refresh", a.refresh)
		r.Post("/logout", a.logout)
		r.Get("/session", a.session)
		r.Patch("/metadata", a.updateMetadata)
	})

	r.Route("/v1/profiles", func(r chi.Router) {
		r.Get("/{id}", a.getProfile)
		r.Put("/{id}", a.putProfile)
	})

	r.Route("/v1/children", func(r chi.Router) {
		r.Get("/", a.listChildren)
		r.Post("/", a.createChild)
		r.Put("/{id}", a.updateChild)
		r.Delete("/{id}", a.deleteChild)
	})

	r.Route("/v1/tasks", func(r chi.Router) {
		r.Get("/", a.listTasks)
		r.Post("/", a.createTask)
		r.Put("/{id}", a.updateTask)
		r.Delete("/{id}", a.deleteTask)
		r.Post("/{id}/complete", a.completeTask)
		r.Post("/{id}/approve", a.approveTask)
	})

	r.Route("/v1/rewards", func(r chi.Router) {
		r.Get("/", a.listRewards)
		r.Post("/", a.createReward)
		r.Put("/{id}", a.updateReward)
		r.Delete("/{id}", a.deleteReward)
	})

	r.Post("/v1/storage/avatars", a.uploadAvatar)
	r.Get("/assets/avatars/{name}", a.serveAvatar)

	r.Get("/v1/events", a.streamEvents)

	return a
}

// Handler assembles the middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = a.withAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 6<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kidboost-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "kidboost-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Logger().Printf("audit log failed: %v", err)
	}
}

func (a *API) publish(ownerID, entity, action, entityID string) {
	if a.events == nil {
		return
	}
	a.events.Publish(events.Change{
		OwnerID:  ownerID,
		Entity:   entity,
		Action:   action,
		EntityID: entityID,
	})
}
