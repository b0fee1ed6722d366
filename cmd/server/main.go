package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"shiftgate/internal/allowlist"
	allowlisthandler "shiftgate/internal/allowlist/handler"
	attendancehandler "shiftgate/internal/attendance/handler"
	attendanceservice "shiftgate/internal/attendance/service"
	attendancestore "shiftgate/internal/attendance/store"
	"shiftgate/internal/audit"
	changehandler "shiftgate/internal/devicechange/handler"
	changeservice "shiftgate/internal/devicechange/service"
	changestore "shiftgate/internal/devicechange/store"
	directoryhandler "shiftgate/internal/directory/handler"
	directorymodels "shiftgate/internal/directory/models"
	directoryservice "shiftgate/internal/directory/service"
	directorystore "shiftgate/internal/directory/store"
	"shiftgate/internal/gate"
	"shiftgate/internal/platform/config"
	"shiftgate/internal/platform/httpserver"
	"shiftgate/internal/platform/logger"
	"shiftgate/internal/platform/metrics"
	"shiftgate/internal/platform/middleware"
	"shiftgate/internal/platform/postgres"
	platformredis "shiftgate/internal/platform/redis"
	"shiftgate/internal/token"
	authmw "shiftgate/pkg/platform/middleware/auth"
	devicemw "shiftgate/pkg/platform/middleware/device"
	metadatamw "shiftgate/pkg/platform/middleware/metadata"
	requesttimemw "shiftgate/pkg/platform/middleware/requesttime"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	auditInboxSize  = 1024
)

// main wires dependencies and the server lifecycle. Business logic lives in
// the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Store selection: Postgres when configured, in-memory otherwise.
	var (
		identities directorystore.Store
		ledger     changestore.Ledger
		punches    attendancestore.Store
		company    allowlist.CompanyStore
		auditStore audit.Store
		changeOpts []changeservice.Option
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		identities = directorystore.NewPostgres(db)
		ledger = changestore.NewPostgresLedger(db)
		punches = attendancestore.NewPostgres(db)
		company = allowlist.NewPostgresCompanyStore(db)
		auditStore = audit.NewPostgres(db)
		changeOpts = append(changeOpts, changeservice.WithStoreTx(newReviewPostgresTx(db, cfg.ReviewTimeout)))
		log.Info("using postgres stores")
	} else {
		identities = directorystore.NewMemoryStore()
		ledger = changestore.NewMemoryLedger()
		punches = attendancestore.NewMemoryStore()
		company = allowlist.NewMemoryCompanyStore(nil)
		auditStore = audit.NewMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	// Token revocation: shared via Redis when configured.
	var revocation authmw.TokenRevocationChecker
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		revocation = token.NewRedisRevocationList(redisClient.Client)
		log.Info("using redis token revocation list")
	} else {
		revocation = token.NewMemoryRevocationList()
	}

	auditInbox := make(chan audit.Event, auditInboxSize)
	auditPublisher := audit.NewPublisher(auditInbox, log)
	auditWorker := audit.NewWorker(auditStore, auditInbox, log)

	resolver := allowlist.NewResolver(company, m, log)
	punchGate := gate.New(identities, resolver, auditPublisher, m, log)

	directorySvc := directoryservice.NewDirectoryService(identities, auditPublisher, m, log)
	changeSvc := changeservice.NewChangeService(ledger, identities, auditPublisher, m, log, changeOpts...)
	attendanceSvc := attendanceservice.NewAttendanceService(punches, punchGate, log)

	validator := token.NewValidator(cfg.JWTSigningKey)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(requesttimemw.Middleware)
	router.Use(metadatamw.ClientMetadata)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Authenticated employee surface.
	router.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, revocation, log))
		r.Use(devicemw.Extract)
		attendancehandler.New(attendanceSvc, log).Register(r)
		changehandler.New(changeSvc, log).Register(r)
	})

	// Admin surface.
	router.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, revocation, log))
		r.Use(authmw.RequireRole(string(directorymodels.RoleAdmin), log))
		changehandler.New(changeSvc, log).RegisterAdmin(r)
		directoryhandler.New(directorySvc, audit.NewReader(auditStore), log).Register(r)
		allowlisthandler.New(company, auditPublisher, m, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := auditWorker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("starting shiftgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
