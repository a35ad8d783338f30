// Package app wires the bot together: store, question provider, engine,
// transport, router, scheduler and the HTTP server hosting the webhook.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/benlos-peru/banquea-bot-whatsapp/assets"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/config"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/engine"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/metrics"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/questions"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/router"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/scheduler"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/store"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/userlock"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/whatsapp"
)

type App struct {
	cfg       config.Config
	log       *zap.Logger
	repo      *store.SQLiteRepo
	client    *whatsapp.Client
	router    *router.Router
	scheduler *scheduler.Scheduler
	httpSrv   *http.Server
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	repo, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Info("sqlite ready", zap.String("path", cfg.DBPath))

	if cfg.SeedQuestions {
		n, err := questions.SeedFromCSV(ctx, repo.DB(), assets.SeedFS)
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		if n > 0 {
			log.Info("question bank seeded", zap.Int("questions", n))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	client := whatsapp.NewClient(
		cfg.GraphAPIURL, cfg.PhoneNumberID, cfg.WhatsAppToken, cfg.VerifyToken,
		cfg.SendTimeout, log.Named("whatsapp"),
	)

	provider := questions.NewSQLiteProvider(repo.DB())
	eng := engine.New(provider)
	locks := userlock.New()

	rt := router.New(log.Named("router"), repo, eng, client, locks, m)
	sched := scheduler.New(repo, log.Named("scheduler"), eng, client, locks, m, loc, cfg.TickInterval)

	a := &App{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		client:    client,
		router:    rt,
		scheduler: sched,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/webhook", a.handleVerify).Methods(http.MethodGet)
	r.HandleFunc("/webhook", a.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/admin/stats", a.handleStats).Methods(http.MethodGet)

	a.httpSrv = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting banquea bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", a.cfg.Timezone),
		zap.Duration("tick", a.cfg.TickInterval),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.scheduler.Run(ctx)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if cerr := a.repo.Close(); cerr != nil {
		a.log.Warn("store close error", zap.Error(cerr))
	}
	return nil
}
