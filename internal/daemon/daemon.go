package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"flight_surety/internal/api"
	"flight_surety/internal/config"
	"flight_surety/internal/database"
	"flight_surety/internal/kafka"
	"flight_surety/internal/ledger"
	"flight_surety/internal/metrics"
	"flight_surety/internal/models"
	"flight_surety/internal/scheduler"
	"flight_surety/internal/surety"
	"flight_surety/internal/tasks"
)

const shutdownTimeout = 5 * time.Second

// Daemon represents the main daemon structure
type Daemon struct {
	ctx           context.Context
	cancel        context.CancelFunc
	scheduler     *scheduler.Scheduler
	database      database.Repository
	ledger        *ledger.Ledger
	engine        *surety.Engine
	collector     *tasks.EventCollector
	eventChan     chan *models.Event
	collectorDone chan struct{}
	producer      *kafka.Producer
	httpServer    *http.Server
	metricsServer *http.Server
	stopOnce      sync.Once
}

// New wires storage, the ledger, the deployed engine and its event sinks
func New(cfg *config.Config) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Initialize database
	db, err := database.New(cfg.DBPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Events flow ledger -> channel -> collector -> journal
	eventChan := make(chan *models.Event, 1000)
	collector := tasks.NewEventCollectorWithConfig(db.Journal(), eventChan,
		cfg.BatchSize, time.Duration(cfg.BatchTimeout)*time.Second)

	l := ledger.New(cfg.Surety.Contract, cfg.Genesis)
	l.AddSink(tasks.ChannelSink(eventChan))

	m := metrics.New()
	l.AddSink(m)
	l.AddRejectObserver(m)

	seed := cfg.Surety.Seed
	if seed == 0 {
		if seed, err = surety.NewSeed(); err != nil {
			cancel()
			db.Close()
			return nil, err
		}
	}

	engine, err := ledger.Deploy(ctx, l, cfg.Surety.Owner, cfg.Surety.FirstAirline, cfg.Surety.Params, surety.NewSeededSource(seed))
	if err != nil {
		cancel()
		db.Close()
		return nil, err
	}
	slog.Info("Engine deployed",
		"owner", cfg.Surety.Owner,
		"first_airline", cfg.Surety.FirstAirline,
		"contract", cfg.Surety.Contract,
		"airline_fee_ether", models.FormatEther(cfg.Surety.Params.AirlineFee),
		"max_insurance_ether", models.FormatEther(cfg.Surety.Params.MaxInsurance),
	)

	// Create scheduler
	sched := scheduler.New(ctx)
	snapshot := func() surety.Stats {
		var s surety.Stats
		l.View(func() { s = engine.Stats() })
		return s
	}
	sched.AddTask(tasks.NewStatsReporter(snapshot, m, time.Duration(cfg.StatsInterval)*time.Second))

	// Kafka is fed from the journal, so a broker outage delays notifications instead of dropping them
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		relay := tasks.NewOutboxRelay(db.Journal(), kafka.NewPublisher(producer),
			cfg.BatchSize, time.Duration(cfg.Kafka.RelayInterval)*time.Second)
		sched.AddTask(relay)
		slog.Info("Relaying journaled events to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	handlers := api.NewHandlers(l, engine, db.Journal())
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return &Daemon{
		ctx:           ctx,
		cancel:        cancel,
		scheduler:     sched,
		database:      db,
		ledger:        l,
		engine:        engine,
		collector:     collector,
		eventChan:     eventChan,
		collectorDone: make(chan struct{}),
		producer:      producer,
		httpServer:    httpServer,
		metricsServer: metricsServer,
	}, nil
}

// Handler is the HTTP API
func (d *Daemon) Handler() http.Handler {
	return d.httpServer.Handler
}

func (d *Daemon) Start() error {
	slog.Info("Starting daemon")

	go func() {
		defer close(d.collectorDone)
		if err := d.collector.Start(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Event collector stopped", "error", err)
		}
	}()

	d.scheduler.Start()

	serve(d.httpServer, "api")
	if d.metricsServer != nil {
		serve(d.metricsServer, "metrics")
	}

	slog.Info("Daemon started successfully", "http_addr", d.httpServer.Addr)
	return nil
}

func serve(srv *http.Server, name string) {
	go func() {
		slog.Info("HTTP server listening", "server", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "server", name, "error", err)
		}
	}()
}

// Stop gracefully stops the daemon. Transactions stop first so every committed
// event is journaled before the database closes.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(d.stop)
	return nil
}

func (d *Daemon) stop() {
	slog.Info("Stopping daemon")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Error shutting down API server", "error", err)
	}
	if d.metricsServer != nil {
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down metrics server", "error", err)
		}
	}

	// no more transactions: drain the journal pipeline
	close(d.eventChan)
	select {
	case <-d.collectorDone:
	case <-ctx.Done():
		slog.Warn("Timed out waiting for event collector")
	}

	d.cancel()
	d.scheduler.Stop()

	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			slog.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := d.database.Close(); err != nil {
		slog.Error("Error closing database", "error", err)
	}

	slog.Info("Daemon stopped")
}
