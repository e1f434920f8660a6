package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/demo"
	"kidboost.app/internal/events"
	"kidboost.app/internal/family"
	"kidboost.app/internal/httpapi"
	"kidboost.app/internal/obs"
	"kidboost.app/internal/storage"
	"kidboost.app/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	// Local development reads .env; production sets real env vars.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		familySvc family.Service
		authStore auth.Store
		probe     httpapi.ReadyProbe
		closeDB   func() error
	)
	if dsn := os.Getenv("KIDBOOST_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		familySvc = store
		authStore = auth.NewPGStore(store.DB())
		probe = httpapi.ReadyProbe{DB: store.DB()}
		closeDB = store.Close
	} else {
		log.Println("KIDBOOST_PG_DSN not set, using in-memory stores")
		familySvc = family.NewInMemory()
		authStore = auth.NewMemStore()
	}

	authSvc, err := auth.NewService(authStore)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	avatarDir := os.Getenv("KIDBOOST_AVATAR_DIR")
	if avatarDir == "" {
		avatarDir = "data/avatars"
	}
	avatars, err := storage.NewAvatarStore(avatarDir)
	if err != nil {
		log.Fatalf("avatar store: %v", err)
	}

	bus := events.New()
	api := httpapi.New(probe, version, authSvc, familySvc, avatars, bus)

	if os.Getenv("KIDBOOST_DEMO") != "" {
		stopDemo, err := startDemo(authSvc, familySvc, bus)
		if err != nil {
			log.Fatalf("demo mode: %v", err)
		}
		defer stopDemo()
	}

	addr := os.Getenv("KIDBOOST_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // allows long-lived event streams
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting kidboost-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if closeDB != nil {
		_ = closeDB()
	}
	log.Println("Stopped")
}

// startDemo provisions a confirmed demo parent, seeds its family and keeps
// generating activity until the returned stop function is called.
func startDemo(authSvc *auth.Service, familySvc family.Service, bus *events.Bus) (func(), error) {
	ctx := context.Background()

	res, err := authSvc.Signup(ctx, "demo-parent@example.com", "demo-password", auth.UserMetadata{
		Name: "Demo Parent",
		Role: auth.RoleParent,
	})
	if err != nil {
		return nil, err
	}
	if _, err := authSvc.ConfirmSignup(ctx, res.ConfirmToken); err != nil {
		return nil, err
	}

	scope := family.Scope{UserID: res.User.ID, Role: auth.RoleParent}
	if err := demo.Seed(ctx, familySvc, scope); err != nil {
		return nil, err
	}

	gen := demo.NewGenerator(familySvc, bus, scope)
	stop := gen.Start(5 * time.Second)
	log.Println("demo mode: sign in as demo-parent@example.com / demo-password")
	return stop, nil
}
