/*
 * Copyright 2025 finch-orm.
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

	"github.com/uptrace/bun"
)

// BaseDatabaseFactory builds a configured database manager and fronts its
// lifecycle: initialization, health checks, statistics, shutdown.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

var supportedTypes = map[string]bool{
	"mysql":      true,
	"postgres":   true,
	"postgresql": true,
	"sqlite":     true,
	"sqlite3":    true,
}

// CreateFromConfig constructs a database manager from the given connection
// configuration, applying environment overrides and setting the factory
// logger.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if !supportedTypes[cfg.Type] {
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres, sqlite)", cfg.Type)
	}

	f.overrideFromEnv(cfg)

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)

	f.manager = manager
	return manager, nil
}

// overrideFromEnv lets deployment environments override credentials and
// pool tuning without touching the checked-in configuration.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	envString("DB_HOST", &cfg.Host)
	envInt("DB_PORT", &cfg.Port)
	envString("DB_USERNAME", &cfg.Username)
	envString("DB_PASSWORD", &cfg.Password)
	envString("DB_NAME", &cfg.DBName)
	envString("DB_SSLMODE", &cfg.SSLMode)

	envInt("DB_MAX_IDLE_CONNS", &cfg.MaxIdleConns)
	envInt("DB_MAX_OPEN_CONNS", &cfg.MaxOpenConns)
	envSeconds("DB_CONN_MAX_LIFETIME", &cfg.ConnMaxLifetime)

	envBool("DB_ENABLE_RECONNECT", &cfg.EnableReconnect)
	envSeconds("DB_RECONNECT_INTERVAL", &cfg.ReconnectInterval)

	envBool("DB_ENABLE_QUERY_LOG", &cfg.EnableQueryLog)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envSeconds(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true"
	}
}

// InitializeDatabase connects to the database and optionally runs migrations.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, runMigrations bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}

	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if runMigrations {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	f.logger.Info("Database initialization completed!")
	return nil
}

// GetManager returns the underlying database manager.
func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the Bun database instance, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger sets the logger on the factory and the underlying manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
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
			LastError:     "database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

// GetStats returns database connection statistics from the manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
