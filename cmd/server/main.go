package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/bus-fleet-reservation/internal/audit"
	"github.com/iliyamo/bus-fleet-reservation/internal/config"
	"github.com/iliyamo/bus-fleet-reservation/internal/database"
	"github.com/iliyamo/bus-fleet-reservation/internal/fleet"
	"github.com/iliyamo/bus-fleet-reservation/internal/handler"
	"github.com/iliyamo/bus-fleet-reservation/internal/monitor"
	"github.com/iliyamo/bus-fleet-reservation/internal/queue"
	"github.com/iliyamo/bus-fleet-reservation/internal/repository"
	"github.com/iliyamo/bus-fleet-reservation/internal/router"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	store := repository.NewBookingStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	auditLog := audit.New(cfg.AMQPURL)
	defer auditLog.Close()

	mgr := fleet.NewManager(fleet.Config{
		InitialBuses:       cfg.InitialBuses,
		MaxBuses:           cfg.MaxBuses,
		SeatsPerBus:        cfg.SeatsPerBus,
		HighLoadThreshold:  cfg.HighLoadThreshold,
		LowLoadThreshold:   cfg.LowLoadThreshold,
		ReservationTimeout: cfg.ReservationTimeout,
	}, store, auditLog)

	// Replay the durable mirror so a restart picks up where it left off.
	records, err := store.ListBookings(ctx)
	if err != nil {
		log.Fatalf("loading bookings failed: %v", err)
	}
	if n := mgr.Seed(records); n > 0 {
		log.Printf("restored %d bookings from the database", n)
	}

	go fleet.NewScheduler(mgr, cfg.SweepInterval, auditLog).Start(ctx)

	// The audit consumer archives broker events to disk; it runs its own
	// reconnect loop and only returns on unrecoverable setup errors.
	go func() {
		err := queue.StartAuditConsumer(queue.ConsumerConfig{
			URL:           cfg.AMQPURL,
			LogDir:        cfg.LogDir,
			BatchSize:     cfg.LogBatchSize,
			FlushInterval: cfg.LogFlushInterval,
		})
		if err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	var sampler *monitor.Sampler
	if s, err := monitor.NewSampler(cfg.MonitorInterval); err == nil {
		sampler = s
		go sampler.Run(ctx)
	} else {
		log.Printf("resource monitor disabled: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, router.Deps{
		Bookings:  handler.NewBookingHandler(mgr),
		Fleet:     handler.NewFleetHandler(mgr, sampler),
		Admin:     handler.NewAdminHandler(mgr, cfg.JWTSecret, cfg.AccessTTLMin, cfg.AdminUser, cfg.AdminPassHash),
		Redis:     config.NewRedisClient(),
		JWTSecret: cfg.JWTSecret,
	})

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Println(err)
	}
}
