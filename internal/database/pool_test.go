package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/config"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB builds a sqlmock-backed gorm DB. sqlmock's option type is
// unexported, so ping monitoring is selected with a flag instead.
func setupMockDB(t *testing.T, monitorPings ...bool) (sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	var (
		mockDB *sql.DB
		mock   sqlmock.Sqlmock
		err    error
	)
	if len(monitorPings) > 0 && monitorPings[0] {
		mockDB, mock, err = sqlmock.New(sqlmock.MonitorPingsOption(true))
	} else {
		mockDB, mock, err = sqlmock.New()
	}
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return mock, gormDB
}

func testPoolConfig() PoolConfig {
	return PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}
}

func TestNewPoolManager(t *testing.T) {
	_, gormDB := setupMockDB(t)

	cfg := testPoolConfig()
	cfg.ConnMaxLifetime = time.Hour
	pm, err := NewPoolManager(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Same(t, gormDB, pm.DB())
	assert.Equal(t, cfg, pm.config)
	assert.Equal(t, 10, pm.GetStats().MaxOpenConnections)
}

func TestNewPoolManager_Rejects(t *testing.T) {
	_, err := NewPoolManager(nil, testPoolConfig(), zap.NewNop())
	assert.Error(t, err)

	_, gormDB := setupMockDB(t)
	_, err = NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 2}, zap.NewNop())
	assert.ErrorContains(t, err, "exceeds")
}

func TestPoolManager_Ping(t *testing.T) {
	mock, gormDB := setupMockDB(t, true)
	pm, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, pm.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, pm.Ping(context.Background()), sql.ErrConnDone)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransaction(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	pm, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, pm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return nil
	}))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = pm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_Close(t *testing.T) {
	mock, gormDB := setupMockDB(t)
	pm, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, pm.Close())
	require.NoError(t, pm.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, pm.Ping(context.Background()), ErrPoolClosed)
	assert.ErrorIs(t, pm.WithTransaction(context.Background(), func(*gorm.DB) error { return nil }), ErrPoolClosed)
}

func TestPoolManager_HealthCheckLoop(t *testing.T) {
	_, gormDB := setupMockDB(t)
	core, logs := observer.New(zapcore.DebugLevel)

	cfg := testPoolConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	pm, err := NewPoolManager(gormDB, cfg, zap.New(core))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("database health check passed").Len() > 0
	}, time.Second, 10*time.Millisecond)

	// the loop has exited once Close returns
	_ = pm.Close()
	select {
	case <-pm.done:
	default:
		t.Fatal("health check loop still running")
	}
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  PoolConfig
		wantErr bool
	}{
		{"valid", PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, false},
		{"equal", PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, false},
		{"no open conns", PoolConfig{MaxOpenConns: 0, MaxIdleConns: 5}, true},
		{"no idle conns", PoolConfig{MaxOpenConns: 10, MaxIdleConns: 0}, true},
		{"idle above open", PoolConfig{MaxOpenConns: 5, MaxIdleConns: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.NoError(t, DefaultPoolConfig().Validate())
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(errors.New("unique constraint violated")))
	assert.True(t, isRetryableError(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")))
	assert.True(t, isRetryableError(errors.New("pq: could not serialize access (SQLSTATE 40001)")))
	assert.True(t, isRetryableError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isRetryableError(errors.New("driver: bad connection")))
}

type note struct {
	ID   uint `gorm:"primaryKey"`
	Body string
}

func openSQLite(t *testing.T) *PoolManager {
	t.Helper()
	pm, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "pool.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { pm.Close() })
	require.NoError(t, pm.DB().AutoMigrate(&note{}))
	return pm
}

func TestOpen_SQLite(t *testing.T) {
	pm := openSQLite(t)
	require.NoError(t, pm.Ping(context.Background()))
	assert.Equal(t, 1, pm.GetStats().MaxOpenConnections)

	err := pm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&note{Body: "kept"}).Error; err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	err = pm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&note{Body: "rolled back"}).Error)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, pm.DB().Model(&note{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestWithTransactionRetry(t *testing.T) {
	pm := openSQLite(t)
	ctx := context.Background()

	attempts := 0
	err := pm.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return tx.Create(&note{Body: "second try"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	attempts = 0
	err = pm.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		attempts++
		return errors.New("check constraint failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDialector_UnknownDriver(t *testing.T) {
	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
	_, err = Open(config.DatabaseConfig{Driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestTransact_Exhausted(t *testing.T) {
	pm := openSQLite(t)
	attempts := 0
	err := Transact(context.Background(), pm.DB(), 2, func(tx *gorm.DB) error {
		attempts++
		return errors.New("database is locked (5) (SQLITE_BUSY)")
	})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorContains(t, err, "SQLITE_BUSY")
	assert.Equal(t, 2, attempts)
}

func TestTransact_Cancelled(t *testing.T) {
	pm := openSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	err := Transact(ctx, pm.DB(), 3, func(tx *gorm.DB) error {
		cancel()
		return errors.New("deadlock detected")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolManager_ObserveStats(t *testing.T) {
	_, gormDB := setupMockDB(t)
	cfg := testPoolConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	pm, err := NewPoolManager(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)
	defer pm.Close()

	got := make(chan PoolStats, 1)
	pm.ObserveStats(func(s PoolStats) {
		select {
		case got <- s:
		default:
		}
	})
	select {
	case s := <-got:
		assert.Equal(t, 10, s.MaxOpenConnections)
	case <-time.After(time.Second):
		t.Fatal("no stats published")
	}
}
