package pgxdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/logx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/validator"
	"github.com/pkg/errors"
)

// integrityViolationClass is the SQLSTATE class of integrity constraint violations
// (23505 unique, 23503 foreign key, 23514 check, 23502 not null, 23P01 exclusion).
const integrityViolationClass = "23"

const drainPollInterval = 10 * time.Millisecond

//#########################################
//#  PostgresProvider - connection pool.  #
//#########################################

// PostgresProvider - pgxpool backed connection provider.
// It Implements dbx.ConnectionProvider and dbx.ErrorClassifier.
type PostgresProvider struct {
	mu          sync.Mutex
	serial      sync.Mutex // single in-flight Acquire when not threaded
	pool        *pgxpool.Pool
	conf        *dbx.PoolConfig
	closed      bool
	outstanding atomic.Int64
}

// NewPostgresProvider - provider with no pool. The pool is created by InitializePool.
func NewPostgresProvider() *PostgresProvider {
	return &PostgresProvider{}
}

// NewLazyPostgresProvider - provider remembering conf as last-known configuration.
// The pool is created on the first Acquire.
func NewLazyPostgresProvider(conf dbx.PoolConfig) *PostgresProvider {
	return &PostgresProvider{conf: &conf}
}

// InitializePool creates the connection pool.
//
// It is idempotent and never panics: it returns false when the pool already exists, when the DSN is
// absent, when the configuration is invalid or when the pool cannot be created, so that independent
// callers may attempt the initialization repeatedly.
func (p *PostgresProvider) InitializePool(ctx context.Context, conf dbx.PoolConfig) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		logx.GetLogger().LogDebug(ctx, "Connection Pool already initialized, skipping")
		return false
	}

	if conf.DSN == "" {
		logx.GetLogger().LogWarning(ctx, "Connection Pool not initialized: DSN is EMPTY")
		return false
	}

	if err := validator.NewValidator().Validate(conf); err != nil {
		logx.GetLogger().LogError(ctx, "Connection Pool not initialized: invalid configuration", err)
		return false
	}

	p.conf = &conf

	pool, err := newConnectionPool(ctx, conf)
	if err != nil {
		logx.GetLogger().LogError(ctx, "Connection Pool Error", err)
		return false
	}

	p.pool = pool
	p.closed = false

	logPoolCreated(ctx, pool)

	return true
}

func newConnectionPool(ctx context.Context, conf dbx.PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := createConnectionConfiguration(conf)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error creating New Connection Pool")
	}

	return pool, nil
}

func createConnectionConfiguration(conf dbx.PoolConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(conf.DSN)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error creating Connection Pool ConnConfig: invalid DSN")
	}

	// Homogeneous pools authenticate every session with the same fixed credentials.
	if conf.Homogeneous {
		if conf.User != "" {
			poolConfig.ConnConfig.User = conf.User
		}

		if conf.Password != "" {
			poolConfig.ConnConfig.Password = conf.Password
		}
	}

	poolConfig.MaxConns = conf.MaxConn
	poolConfig.MinConns = conf.MinConn

	return poolConfig, nil
}

func logPoolCreated(ctx context.Context, pool *pgxpool.Pool) {
	logx.
		GetLogger().
		LogInfo(ctx, fmt.Sprintf("Created new Connection Pool: DB=%s, HOST=%s, PORT=%d, MAX=%d, MIN=%d",
			pool.Config().ConnConfig.Database,
			pool.Config().ConnConfig.Host,
			pool.Config().ConnConfig.Port,
			pool.Config().MaxConns,
			pool.Config().MinConns))
}

// getOrCreatePool returns the pool, creating it from the last-known configuration when needed.
func (p *PostgresProvider) getOrCreatePool(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		return p.pool, nil
	}

	if p.closed {
		return nil, errorx.NewDatabaseError("error, Connection Pool closed")
	}

	if p.conf == nil || p.conf.DSN == "" {
		return nil, errorx.NewConfigurationErrorCode(errorx.ErrorPoolNotConfigured, nil)
	}

	if err := validator.NewValidator().Validate(*p.conf); err != nil {
		return nil, errorx.NewConfigurationErrorCode(errorx.ErrorInvalidPoolConfig, err)
	}

	pool, err := newConnectionPool(ctx, *p.conf)
	if err != nil {
		return nil, err
	}

	p.pool = pool
	logPoolCreated(ctx, pool)

	return pool, nil
}

func (p *PostgresProvider) isThreaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.conf == nil || p.conf.Threaded
}

// Acquire - get a session from the pool, blocking until one is free (bounded by MaxConn and ctx).
// With Threaded=false at most one Acquire is in flight at a time.
func (p *PostgresProvider) Acquire(ctx context.Context) (dbx.Conn, error) {
	if !p.isThreaded() {
		p.serial.Lock()
		defer p.serial.Unlock()
	}

	pool, err := p.getOrCreatePool(ctx)
	if err != nil {
		logx.GetLogger().LogError(ctx, "error, Connection Pool To DB not initialized", err)
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		logx.GetLogger().LogError(ctx, "Error acquiring connection from pool", err)
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error acquiring connection from pool")
	}

	p.outstanding.Add(1)

	return &pgxConn{conn: conn, provider: p}, nil
}

// Release - give a session back to the pool.
// It returns false, and logs, when the handle is nil, foreign to this provider or already released.
// Release never takes the Acquire serialization lock: an Acquire blocked on a full pool waits for it.
func (p *PostgresProvider) Release(ctx context.Context, conn dbx.Conn) bool {
	pc, ok := conn.(*pgxConn)
	if !ok || pc == nil || pc.conn == nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("error releasing connection: unknown handle %T", conn))
		return false
	}

	if pc.provider != p {
		logx.GetLogger().LogError(ctx, "error releasing connection: handle acquired from another provider")
		return false
	}

	if !pc.released.CompareAndSwap(false, true) {
		logx.GetLogger().LogWarning(ctx, "error releasing connection: already released")
		return false
	}

	pc.conn.Release()
	p.outstanding.Add(-1)

	return true
}

// Outstanding - number of sessions acquired and not yet released.
func (p *PostgresProvider) Outstanding() int64 {
	return p.outstanding.Load()
}

// Close - drain and close the pool. Used at process shutdown.
//
// Without force it waits, bounded by ctx, for the outstanding sessions to be released.
// With force the pool is closed in background and Close returns immediately; sessions still
// acquired are destroyed when released.
func (p *PostgresProvider) Close(ctx context.Context, force bool) {
	p.mu.Lock()
	pool := p.pool
	p.pool = nil
	p.closed = true
	p.mu.Unlock()

	if pool == nil {
		return
	}

	if force {
		go pool.Close()
		logx.GetLogger().LogInfo(ctx, "DB Connection Pool closing (forced)")

		return
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for p.outstanding.Load() > 0 {
		select {
		case <-ctx.Done():
			logx.GetLogger().LogWarning(ctx,
				fmt.Sprintf("DB Connection Pool closing with %d outstanding connections", p.outstanding.Load()), ctx.Err())
			go pool.Close()

			return
		case <-ticker.C:
		}
	}

	pool.Close()
	logx.GetLogger().LogInfo(ctx, "DB Connection Pool Successfully Closed!")
}

// IsIntegrityViolation - reports SQLSTATE class 23 errors.
func (p *PostgresProvider) IsIntegrityViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, integrityViolationClass)
	}

	return false
}
