/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

// driver binds a ConnectionConfig.Type to its database/sql driver, Bun
// dialect and generated DSN.
type driver struct {
	name    string
	dialect func() schema.Dialect
	dsn     func(c *ConnectionConfig) string
	// single pins the pool to one connection.
	single bool
}

var drivers = map[string]driver{
	"mysql":    {name: "mysql", dialect: mysqlDialect, dsn: mysqlDSN},
	"postgres": {name: "postgres", dialect: pgDialect, dsn: postgresDSN},
	"pgx":      {name: "pgx", dialect: pgDialect, dsn: postgresDSN},
	"sqlite":   {name: sqliteshim.ShimName, dialect: sqliteDialect, dsn: sqliteDSN, single: true},
}

func mysqlDialect() schema.Dialect  { return mysqldialect.New() }
func pgDialect() schema.Dialect     { return pgdialect.New() }
func sqliteDialect() schema.Dialect { return sqlitedialect.New() }

func mysqlDSN(c *ConnectionConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, c.ConnectTimeout, c.ReadTimeout, c.WriteTimeout)
}

func postgresDSN(c *ConnectionConfig) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode, int(c.ConnectTimeout.Seconds()))
}

func sqliteDSN(c *ConnectionConfig) string {
	return fmt.Sprintf("file:%s.db?cache=shared", c.DBName)
}

type bunManager struct {
	cfg     *ConnectionConfig
	migrate DataMigrateConfig
	logger  Logger

	mu sync.RWMutex
	db *bun.DB

	stop     chan struct{}
	stopOnce sync.Once
	watching sync.Once
}

// NewDatabaseManager returns a Manager backed by Bun. A nil config falls
// back to DefaultConfig.
func NewDatabaseManager(config *Config) Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &bunManager{
		cfg:     &config.ConnectionConfig,
		migrate: config.DataMigrateConfig,
		logger:  GetLogger(),
		stop:    make(chan struct{}),
	}
}

func (m *bunManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return nil
	}

	db, err := m.open(ctx)
	if err != nil {
		return err
	}
	m.db = db
	if m.cfg.HealthCheckInterval > 0 {
		m.watch()
	}
	m.logger.Info("Database connected", "type", m.cfg.Type, "host", m.cfg.Host)
	return nil
}

// open dials a fresh pool and verifies it with a ping.
func (m *bunManager) open(ctx context.Context) (*bun.DB, error) {
	d, ok := drivers[m.cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", m.cfg.Type)
	}
	if m.cfg.ConnectTimeout <= 0 {
		m.cfg.ConnectTimeout = 30 * time.Second
	}
	dsn := m.cfg.DSN
	if dsn == "" {
		dsn = d.dsn(m.cfg)
	}

	sqlDB, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", m.cfg.Type, err)
	}
	maxOpen := m.cfg.MaxOpenConns
	if d.single {
		maxOpen = 1
	}
	sqlDB.SetMaxIdleConns(m.cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(m.cfg.ConnMaxIdleTime)

	db := bun.NewDB(sqlDB, d.dialect())
	m.addHooks(db)

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	return db, nil
}

func (m *bunManager) addHooks(db *bun.DB) {
	if m.cfg.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	} else {
		db.AddQueryHook(NewQueryHook(WithEnv("BUNDEBUG")))
	}
	if m.cfg.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: m.cfg.SlowQueryTime, logger: m.logger})
	}
}

func (m *bunManager) Disconnect() error {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
	} else {
		m.logger.Info("Database connection closed")
	}
	return err
}

// reconnect swaps the pool for a freshly dialed one.
func (m *bunManager) reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		_ = m.db.Close()
		m.db = nil
	}
	db, err := m.open(ctx)
	if err != nil {
		return err
	}
	m.db = db
	return nil
}

func (m *bunManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *bunManager) HealthCheck(ctx context.Context) *HealthStatus {
	db := m.GetDB()
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	if db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}

	stats := db.DB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}

// watch probes the pool every HealthCheckInterval and redials it up to
// MaxReconnectTries times in a row while it stays unhealthy.
func (m *bunManager) watch() {
	m.watching.Do(func() {
		go func() {
			ticker := time.NewTicker(m.cfg.HealthCheckInterval)
			defer ticker.Stop()
			tries := 0
			for {
				select {
				case <-m.stop:
					return
				case <-ticker.C:
				}

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				healthy := m.HealthCheck(ctx).Healthy
				cancel()
				if healthy {
					tries = 0
					continue
				}
				if !m.cfg.EnableReconnect || tries >= m.cfg.MaxReconnectTries {
					continue
				}

				tries++
				m.logger.Info("Starting database reconnect", "try", tries)
				select {
				case <-m.stop:
					return
				case <-time.After(m.cfg.ReconnectInterval):
				}
				ctx, cancel = context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
				err := m.reconnect(ctx)
				cancel()
				switch {
				case err == nil:
					tries = 0
					m.logger.Info("Reconnect succeeded")
				case tries == m.cfg.MaxReconnectTries:
					m.logger.Error("Max reconnect attempts reached, stopping", "error", err, "tries", tries)
				default:
					m.logger.Error("Reconnect failed", "error", err, "try", tries)
				}
			}
		}()
	})
}

func (m *bunManager) GetStats() *DBStats {
	db := m.GetDB()
	if db == nil {
		return &DBStats{}
	}
	stats := db.DB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (m *bunManager) RunMigrations(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return NewMigrationManager(db, m.logger, m.migrate).RunMigrations(ctx)
}

func (m *bunManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}
