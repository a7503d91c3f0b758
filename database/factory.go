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
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tomoncle/repohub/utils"
	"github.com/uptrace/bun"
)

// BaseDatabaseFactory creates and manages a configured database manager and
// provides helpers for initialization, health checks, and statistics.
type BaseDatabaseFactory struct {
	manager Manager
	logger  Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// SupportedTypes lists the accepted ConnectionConfig.Type values.
var SupportedTypes = []string{"mysql", "postgres", "pgx", "sqlite"}

// CreateFromConfig constructs a database manager from the given
// configuration, applying environment overrides and setting the factory logger.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *Config) (Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}

	// Override sensitive config from environment variables
	OverrideFromEnv(&cfg.ConnectionConfig)

	supported := false
	for _, t := range SupportedTypes {
		if cfg.ConnectionConfig.Type == t {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.ConnectionConfig.Type, SupportedTypes)
	}

	// Create manager
	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)

	f.manager = manager
	return manager, nil
}

// OverrideFromEnv overrides configuration values from DB_* environment
// variables.
func OverrideFromEnv(cfg *ConnectionConfig) {
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		cfg.Type = dbType
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.DSN = dsn
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		cfg.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.SSLMode = sslmode
	}
	// Connection pool config
	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			cfg.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			cfg.MaxOpenConns = val
		}
	}
	cfg.ConnMaxLifetime = utils.EnvDefaultDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)

	// Reconnect config
	cfg.EnableReconnect = utils.EnvDefaultBool("DB_ENABLE_RECONNECT", cfg.EnableReconnect)
	cfg.ReconnectInterval = utils.EnvDefaultDuration("DB_RECONNECT_INTERVAL", cfg.ReconnectInterval)
	cfg.SlowQueryTime = utils.EnvDefaultDuration("DB_SLOW_QUERY_TIME", cfg.SlowQueryTime)

	// Logging config
	cfg.EnableQueryLog = utils.EnvDefaultBool("DB_ENABLE_QUERY_LOG", cfg.EnableQueryLog)
}

// InitializeDatabase connects to the database and optionally runs migrations.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, runMigrations bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}

	// Connect to database
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	// Run migrations
	if runMigrations {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	f.logger.Info("Database initialization completed!")
	return nil
}

// Close closes the database connection managed by the factory.
func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

// GetHealthStatus returns the current database health status from the manager.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			Healthy:       false,
			Connected:     false,
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

// GetDB returns the Bun database instance from the manager.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// GetStats returns database connection statistics from the manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
