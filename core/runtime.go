package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tdcchain/core/events"
	"tdcchain/core/state"
	"tdcchain/observability"
	telemetry "tdcchain/observability/otel"
	"tdcchain/storage"
)

// Runtime serialises every ledger call over one database. Each call runs in
// its own transaction: writes are journaled and events buffered until the
// call returns, then either both land or neither does.
type Runtime struct {
	mu      sync.Mutex
	db      storage.Database
	emitter events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer

	allowMigrate bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithEmitter sets the destination of committed events.
func WithEmitter(emitter events.Emitter) Option {
	return func(r *Runtime) {
		if emitter != nil {
			r.emitter = emitter
		}
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer overrides the tracer used for transaction spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runtime) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithAllowMigrate permits opening a database stamped with an older state
// schema version.
func WithAllowMigrate(allow bool) Option {
	return func(r *Runtime) { r.allowMigrate = allow }
}

// NewRuntime opens a runtime over db, stamping the state schema version on a
// fresh database.
func NewRuntime(db storage.Database, opts ...Option) (*Runtime, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	r := &Runtime{
		db:      db,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := state.EnsureStateVersion(db, r.allowMigrate); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs fn as one atomic transaction named operation. If fn returns an
// error, or the commit fails, no write and no event escapes.
func (r *Runtime) Execute(ctx context.Context, operation string, fn func(*Session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := r.tracer.Start(ctx, "ledger."+operation)
	defer span.End()
	start := time.Now()

	manager := state.NewManager(r.db)
	buffer := &events.Buffer{}
	err := fn(newSession(ctx, manager, buffer))
	if err == nil {
		writes := manager.Pending()
		if err = manager.Commit(); err == nil {
			observability.Ledger().ObserveCommit(writes)
			span.SetAttributes(attribute.Int("ledger.writes", writes))
		}
	}
	observability.Ledger().ObserveTransaction(operation, err, time.Since(start))
	if err != nil {
		manager.Discard()
		buffer.Reset()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("ledger transaction aborted", "operation", operation, "error", err)
		return err
	}
	published := buffer.Events()
	buffer.Flush(r.emitter)
	span.SetAttributes(attribute.Int("ledger.events", len(published)))
	r.logger.Debug("ledger transaction committed", "operation", operation, "events", len(published))
	return nil
}

// View runs fn against current state. Anything fn writes is discarded.
func (r *Runtime) View(ctx context.Context, fn func(*Session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	manager := state.NewManager(r.db)
	defer manager.Discard()
	return fn(newSession(ctx, manager, events.NoopEmitter{}))
}

// Deploy registers a ledger in its own transaction.
func (r *Runtime) Deploy(ctx context.Context, name string, kind Kind, admins [][20]byte) (*Deployment, error) {
	var (
		deployment *Deployment
		created    bool
	)
	err := r.Execute(ctx, "deploy", func(s *Session) error {
		var err error
		deployment, created, err = s.Deploy(name, kind, admins)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		observability.Ledger().RecordDeployment()
		r.logger.Info("ledger deployed",
			"ledger", deployment.Name,
			"kind", string(deployment.Kind),
			"address", deployment.Principal())
	}
	return deployment, nil
}

// Deployments lists every deployed ledger.
func (r *Runtime) Deployments(ctx context.Context) ([]Deployment, error) {
	var out []Deployment
	err := r.View(ctx, func(s *Session) error {
		var err error
		out, err = s.Deployments()
		return err
	})
	return out, err
}
