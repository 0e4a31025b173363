// Package coordinator assembles the coordination core's components —
// State Store, State Machine, Scheduler, Allocator, Executor Gateway,
// Content Stream Server, blob storage collaborator, tracing, and
// metrics — into a single runnable process, the way
// pkg/orchestrator.New composed a *sql.DB, an event store, and a
// replica set name into a running Orchestrator.
package coordinator

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	root "github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/allocator"
	"github.com/vertexflow/coordinator/blobstore"
	"github.com/vertexflow/coordinator/changelog"
	"github.com/vertexflow/coordinator/config"
	"github.com/vertexflow/coordinator/gateway"
	"github.com/vertexflow/coordinator/metrics"
	"github.com/vertexflow/coordinator/scheduler"
	"github.com/vertexflow/coordinator/statemachine"
	"github.com/vertexflow/coordinator/store"
	"github.com/vertexflow/coordinator/store/memory"
	"github.com/vertexflow/coordinator/store/mysql"
	"github.com/vertexflow/coordinator/store/postgres"
	"github.com/vertexflow/coordinator/store/sqlite"
	"github.com/vertexflow/coordinator/streamserver"
	"github.com/vertexflow/coordinator/tracing"
)

// Option configures a Coordinator.
type Option func(*settings)

// settings holds the internal configuration for building a Coordinator,
// before its dependent components are constructed.
type settings struct {
	cfg       config.Config
	store     store.Store
	logger    root.Logger
	allocator *allocator.Allocator
	blob      blobstore.Store
}

// WithConfig sets the process configuration. If not supplied, New reads
// config.FromEnv().
func WithConfig(cfg config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithStore overrides the State Store the coordinator dispatches to
// from Config.Store.Driver; useful for tests that want an in-memory
// store shared with pre-seeded fixtures.
func WithStore(st store.Store) Option {
	return func(s *settings) { s.store = st }
}

// WithLogger overrides the coordinator's Logger. Defaults to
// root.NewDefaultLogger().
func WithLogger(l root.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithAllocator overrides the Scheduler's task allocation strategy.
// Defaults to an allocator using the strategy named by
// Config.AllocatorStrategy.
func WithAllocator(a *allocator.Allocator) Option {
	return func(s *settings) { s.allocator = a }
}

// WithBlobStore sets the blob storage collaborator the Coordinator
// holds; it is not passed to the gateway or the stream server. If not
// supplied and
// Config.MinIOEndpoint is set, New dials a blobstore.MinioStore;
// otherwise the coordinator runs with no blob backend.
func WithBlobStore(b blobstore.Store) Option {
	return func(s *settings) { s.blob = b }
}

// Coordinator is the fully wired coordination core process: a State
// Machine over a State Store, a Scheduler deriving tasks from the
// change log, and the two HTTP surfaces (Executor Gateway, Content
// Stream Server) executors and subscribers speak to.
type Coordinator struct {
	cfg config.Config
	log root.Logger

	store     store.Store
	machine   *statemachine.Machine
	scheduler *scheduler.Scheduler
	gatewaySv *gateway.Server
	streamSv  *streamserver.Server
	metricsSv *metrics.Server
	blob      blobstore.Store
	changes   *changelog.Reader

	shutdownTracing func(context.Context) error

	db *sql.DB
}

// New builds a Coordinator from opts, applying config.FromEnv()
// defaults for anything not overridden.
func New(opts ...Option) (*Coordinator, error) {
	s := &settings{cfg: config.FromEnv()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = root.NewDefaultLogger()
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	var db *sql.DB
	if s.store == nil {
		st, sqlDB, err := openStore(s.cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("coordinator: open store: %w", err)
		}
		s.store, db = st, sqlDB
	}

	if s.allocator == nil {
		strategy, err := allocatorStrategy(s.cfg.AllocatorStrategy)
		if err != nil {
			return nil, fmt.Errorf("coordinator: %w", err)
		}
		s.allocator = allocator.New(allocator.Config{Strategy: strategy})
	}

	if s.blob == nil && s.cfg.MinIOEndpoint != "" {
		b, err := blobstore.NewMinioStore(blobstore.MinioConfig{
			Endpoint:  s.cfg.MinIOEndpoint,
			AccessKey: s.cfg.MinIOAccessKey,
			SecretKey: s.cfg.MinIOSecretKey,
			UseSSL:    s.cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("coordinator: connect blob store: %w", err)
		}
		s.blob = b
	}

	machine := statemachine.New(statemachine.Config{
		Store:  s.store,
		Logger: s.logger,
	})

	sched := scheduler.New(scheduler.Config{
		Store:        s.store,
		Machine:      machine,
		Allocator:    s.allocator,
		PollInterval: s.cfg.SchedulerPollInterval,
		Logger:       s.logger,
	})

	gw := gateway.New(gateway.Config{
		Machine:              machine,
		Store:                s.store,
		HeartbeatTTL:         s.cfg.HeartbeatTTL,
		SweepInterval:        s.cfg.SweepInterval,
		RemovalGrace:         s.cfg.RemovalGrace,
		AuthToken:            s.cfg.GatewayAuthToken,
		DefaultMaxConcurrent: s.cfg.MaxConcurrentTasksPerExecutor,
		Logger:               s.logger,
	})

	stream := streamserver.New(streamserver.Config{
		Store:             s.store,
		PollInterval:      s.cfg.StreamPollInterval,
		KeepAliveInterval: s.cfg.StreamKeepAliveInterval,
		Logger:            s.logger,
	})

	return &Coordinator{
		cfg:       s.cfg,
		log:       s.logger,
		store:     s.store,
		machine:   machine,
		scheduler: sched,
		gatewaySv: gw,
		streamSv:  stream,
		metricsSv: metrics.NewServer(s.cfg.MetricsAddr),
		blob:      s.blob,
		changes:   changelog.New(s.store),
		db:        db,
	}, nil
}

// allocatorStrategy resolves a config name to an allocator.Strategy,
// defaulting to LeastLoaded for an unset name.
func allocatorStrategy(name string) (allocator.Strategy, error) {
	switch name {
	case "", "least_loaded":
		return allocator.LeastLoaded{}, nil
	case "round_robin":
		return &allocator.RoundRobin{}, nil
	default:
		return nil, fmt.Errorf("unknown allocator strategy %q", name)
	}
}

// Machine returns the coordinator's State Machine, for callers (an
// ingestion frontend, an admin CLI) that issue commands directly rather
// than through an HTTP surface this module exposes.
func (c *Coordinator) Machine() *statemachine.Machine { return c.machine }

// Store returns the coordinator's State Store.
func (c *Coordinator) Store() store.Store { return c.store }

// openStore dials the State Store backend named by cfg.Driver,
// returning the *sql.DB alongside it (nil for the memory driver) so
// Close can shut it down.
func openStore(cfg config.Store) (store.Store, *sql.DB, error) {
	if cfg.Driver == "" || cfg.Driver == "memory" {
		return memory.New(), nil, nil
	}

	driverName := cfg.Driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}
	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	switch cfg.Driver {
	case "postgres":
		return postgres.New(db), db, nil
	case "sqlite":
		return sqlite.New(db), db, nil
	case "mysql":
		return mysql.New(db), db, nil
	default:
		db.Close()
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Run starts every component's background loop and both HTTP servers,
// blocking until ctx is cancelled or a component fails irrecoverably.
// Mirroring pkg/orchestrator's recreate.Orchestrator.Run, each
// long-running piece reports its outcome over its own error channel so
// Run can shut everything else down on the first failure rather than
// leaving orphaned goroutines behind.
func (c *Coordinator) Run(ctx context.Context) error {
	shutdownTracing, err := tracing.Init(c.cfg.OTelServiceName)
	if err != nil {
		return fmt.Errorf("coordinator: init tracing: %w", err)
	}
	c.shutdownTracing = shutdownTracing

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 5)

	go func() { errCh <- c.scheduler.Run(ctx) }()
	go func() { errCh <- c.gatewaySv.Sweep(ctx) }()
	go func() { errCh <- c.changes.PruneLoop(ctx, c.cfg.PruneInterval, c.cfg.ChangeLogRetention, c.log) }()

	gatewayHTTP := &http.Server{Addr: c.cfg.GatewayAddr, Handler: c.gatewaySv.Handler()}
	streamHTTP := &http.Server{Addr: c.cfg.StreamAddr, Handler: c.streamSv.Handler()}

	go func() { errCh <- serveOrNil(gatewayHTTP) }()
	go func() { errCh <- serveOrNil(streamHTTP) }()

	c.metricsSv.Start()

	c.log.Info(ctx, "coordinator started",
		"gateway_addr", c.cfg.GatewayAddr,
		"stream_addr", c.cfg.StreamAddr,
		"metrics_addr", c.cfg.MetricsAddr,
		"store_driver", c.cfg.Store.Driver,
	)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	gatewayHTTP.Shutdown(shutdownCtx)
	streamHTTP.Shutdown(shutdownCtx)
	c.metricsSv.Shutdown(shutdownCtx)
	if c.shutdownTracing != nil {
		c.shutdownTracing(shutdownCtx)
	}
	if c.db != nil {
		c.db.Close()
	}

	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}

func serveOrNil(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
