package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPoolClosed is returned after Close.
var ErrPoolClosed = errors.New("database pool is closed")

// PoolConfig sizes the database/sql pool under gorm.
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	// HealthCheckInterval is how often the pool pings the server and
	// publishes PoolStats. Zero disables the loop.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        5,
		MaxOpenConns:        25,
		ConnMaxLifetime:     5 * time.Minute,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Validate rejects sizes database/sql would quietly reinterpret: zero open
// means unlimited and idle above open is clamped.
func (c PoolConfig) Validate() error {
	switch {
	case c.MaxOpenConns <= 0:
		return fmt.Errorf("max_open_conns must be positive, got %d", c.MaxOpenConns)
	case c.MaxIdleConns <= 0:
		return fmt.Errorf("max_idle_conns must be positive, got %d", c.MaxIdleConns)
	case c.MaxIdleConns > c.MaxOpenConns:
		return fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// PoolStats is the subset of sql.DBStats exported as metrics.
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// PoolManager owns the gorm handle shared by the message store, the
// account service and the profile repository.
type PoolManager struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	config PoolConfig
	logger *zap.Logger

	onStats atomic.Pointer[func(PoolStats)]

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

func NewPoolManager(db *gorm.DB, config PoolConfig, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pm := &PoolManager{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "db_pool")),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if config.HealthCheckInterval > 0 {
		go pm.watch()
	} else {
		close(pm.done)
	}
	pm.logger.Info("database pool ready",
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns),
	)
	return pm, nil
}

func (pm *PoolManager) DB() *gorm.DB { return pm.db }

// ObserveStats registers fn to receive PoolStats after every successful
// health check. The serve command feeds it into the Prometheus gauges.
func (pm *PoolManager) ObserveStats(fn func(PoolStats)) {
	pm.onStats.Store(&fn)
}

func (pm *PoolManager) Ping(ctx context.Context) error {
	if _, err := pm.open(); err != nil {
		return err
	}
	return pm.sqlDB.PingContext(ctx)
}

func (pm *PoolManager) GetStats() PoolStats {
	s := pm.sqlDB.Stats()
	return PoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}
}

// Close stops the health check and closes the pool. Repeated calls return
// nil.
func (pm *PoolManager) Close() error {
	pm.mu.Lock()
	if pm.closed {
		pm.mu.Unlock()
		return nil
	}
	pm.closed = true
	close(pm.stop)
	pm.mu.Unlock()

	<-pm.done
	pm.logger.Info("closing database pool")
	return pm.sqlDB.Close()
}

func (pm *PoolManager) watch() {
	defer close(pm.done)
	ticker := time.NewTicker(pm.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-pm.stop:
			return
		case <-ticker.C:
			pm.check()
		}
	}
}

func (pm *PoolManager) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pm.Ping(ctx); err != nil {
		if !errors.Is(err, ErrPoolClosed) {
			pm.logger.Error("database health check failed", zap.Error(err))
		}
		return
	}
	stats := pm.GetStats()
	pm.logger.Debug("database health check passed",
		zap.Int("open", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
	)
	if fn := pm.onStats.Load(); fn != nil {
		(*fn)(stats)
	}
}
