package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"yieldvault/internal/bootstrap"
	"yieldvault/internal/events"
	"yieldvault/internal/handlers"
	"yieldvault/internal/middleware"
	"yieldvault/internal/routes"
	"yieldvault/internal/schedule"
	"yieldvault/pkg/config"
)

func main() {
	app, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	app.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, app); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, app *config.App) error {
	var db *gorm.DB
	if app.Database.Enabled() {
		if err := config.InitDB(app.Database); err != nil {
			return err
		}
		defer config.CloseDB()
		db = config.DB

		if app.RunMigrations {
			if err := config.ExecuteMigrations(app.MigrationsDir); err != nil {
				return err
			}
		}
	} else {
		log.Warn("database not configured, snapshots and event history are disabled")
	}

	hub := events.NewHub(originChecker(app.AllowedOrigins))

	sinks := events.Multi{
		events.LogSink{Logger: log.WithField("component", "events")},
		hub,
	}
	if app.RabbitMQ.Enabled() {
		if err := config.InitRabbitMQ(app.RabbitMQ); err != nil {
			return err
		}
		defer config.RabbitMQ.Close()

		pub, err := config.NewPublisher()
		if err != nil {
			return err
		}
		defer pub.Close()
		// the worker persists what is published
		sinks = append(sinks, events.NewAMQPSink(pub, app.EventsQueue))
	} else if db != nil {
		sinks = append(sinks, events.NewGormSink(db))
	}

	vf, err := config.LoadVaultFile(app.VaultConfig)
	if err != nil {
		return err
	}
	d, err := bootstrap.Build(ctx, vf, bootstrap.Options{DB: db, Events: sinks})
	if err != nil {
		return err
	}

	h := handlers.NewVaultHandler(d.Vault, d.Asset, d.NewStrategy, db)
	for _, tok := range d.Tokens {
		h.RegisterToken(tok)
	}

	g, gctx := errgroup.WithContext(ctx)

	r := routes.SetupRouter(gctx, h, routes.Options{
		AllowedOrigins: app.AllowedOrigins,
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: app.RateLimitRPS,
			Burst:             app.RateLimitBurst,
		},
		Hub:  hub,
		Gate: d.Gate,
	})
	srv := &http.Server{
		Addr:              ":" + app.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := schedule.New()
	if err := sched.Register(app.HarvestCron, schedule.NewKeeper(d.Vault, d.Gate)); err != nil {
		return err
	}
	if db != nil {
		if err := sched.Register(app.SnapshotCron, schedule.NewSnapshotter(d.Vault, d.Gate, db)); err != nil {
			return err
		}
	}

	g.Go(func() error {
		log.Infof("listening on :%s", app.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sched.Start(gctx)
	})

	return g.Wait()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
