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

	"github.com/uptrace/bun"
)

var (
	globalFactory *BaseDatabaseFactory
	DB            *bun.DB
)

// GetDB returns the global Bun database instance.
func GetDB() *bun.DB {
	if globalFactory != nil {
		return globalFactory.GetDB()
	}
	return DB
}

// InitDB initializes the global database using the provided configuration.
func InitDB(cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	return InitDatabaseWithOptions(cfg, cfg.DataMigrateConfig.EnableMigrateOnStartup)
}

// InitDatabaseWithOptions initializes the database and optionally runs migrations.
func InitDatabaseWithOptions(cfg *Config, runMigrations bool) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	globalFactory = NewDatabaseFactory()
	manager, err := globalFactory.CreateFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	ctx := context.Background()
	if err := globalFactory.InitializeDatabase(ctx, runMigrations); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	DB = manager.GetDB()
	return DB, nil
}

// CloseDB closes the global database connection.
func CloseDB() error {
	if globalFactory != nil {
		return globalFactory.Close()
	}
	return nil
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if globalFactory != nil {
		return globalFactory.GetHealthStatus(ctx)
	}
	return &HealthStatus{
		Healthy:   false,
		Connected: false,
		LastError: "Database not initialized",
	}
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	if globalFactory != nil {
		return globalFactory.GetStats()
	}
	return &DBStats{}
}
