package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/skyface-app/server/db"
	"github.com/skyface-app/server/internal/auth"
	"github.com/skyface-app/server/internal/config"
	"github.com/skyface-app/server/internal/httpapi"
	"github.com/skyface-app/server/internal/migrate"
	"github.com/skyface-app/server/internal/obs"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	database.SetMaxOpenConns(25)
	database.SetMaxIdleConns(10)
	database.SetConnMaxLifetime(30 * time.Minute)

	// Schema bootstrap happens here, once, before the listener exists.
	// Requests never race table creation.
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	mgr := migrate.NewManager(database, db.FS, db.MigrationsDir, db.SeedsDir)
	if err := mgr.Up(bootCtx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := mgr.Seed(bootCtx); err != nil {
		log.Fatalf("seed: %v", err)
	}
	cancelBoot()

	svc, err := auth.NewService(auth.NewPGStore(database),
		auth.WithSecret(cfg.AuthSecret),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithSessionTTL(cfg.SessionTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: database}, httpapi.Options{
		Version:       version,
		SecureCookies: !cfg.IsDevelopment(),
		AvatarsDir:    cfg.AvatarsDir,
		CORSOrigins:   cfg.CORSOrigins,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		RateBurst:     cfg.RateBurst,
		RatePerSec:    cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting skyface-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = database.Close()
	log.Println("Stopped")
}
