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
	"os"
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// AbstractDatabaseManager defines the operations for managing a database
// connection, creating the auth schema, and reporting on both.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	SchemaStatus(ctx context.Context) (*SchemaStatus, error)
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Type          string        `json:"type" yaml:"type"`
	Healthy       bool          `json:"healthy" yaml:"healthy"`
	Connected     bool          `json:"connected" yaml:"connected"`
	Reconnected   bool          `json:"reconnected,omitempty" yaml:"reconnected,omitempty"`
	ResponseTime  time.Duration `json:"response_time" yaml:"response_time"`
	ActiveConns   int           `json:"active_conns" yaml:"active_conns"`
	IdleConns     int           `json:"idle_conns" yaml:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns" yaml:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time" yaml:"last_check_time"`
}

// TableStatus reports whether a schema table exists and which declared
// columns it lacks.
type TableStatus struct {
	Name           string   `json:"name" yaml:"name"`
	Exists         bool     `json:"exists" yaml:"exists"`
	MissingColumns []string `json:"missing_columns,omitempty" yaml:"missing_columns,omitempty"`
}

// SchemaStatus compares the database with the tables migrations would create.
type SchemaStatus struct {
	Version string        `json:"version" yaml:"version"`
	Applied bool          `json:"applied" yaml:"applied"`
	Tables  []TableStatus `json:"tables" yaml:"tables"`
}

// Ready reports whether the current version is applied and every table is complete.
func (s *SchemaStatus) Ready() bool {
	if !s.Applied {
		return false
	}
	for _, t := range s.Tables {
		if !t.Exists || len(t.MissingColumns) > 0 {
			return false
		}
	}
	return true
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns" yaml:"max_open_conns"`
	OpenConns         int           `json:"open_conns" yaml:"open_conns"`
	InUse             int           `json:"in_use" yaml:"in_use"`
	Idle              int           `json:"idle" yaml:"idle"`
	WaitCount         int64         `json:"wait_count" yaml:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration" yaml:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed" yaml:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed" yaml:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed" yaml:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
// Durations are written as Go duration strings ("30s") in YAML.
type ConnectionConfig struct {
	Type              string        `json:"type" yaml:"type"` // postgres, mysql, sqlite
	Host              string        `json:"host" yaml:"host"`
	Port              int           `json:"port" yaml:"port"`
	Username          string        `json:"username" yaml:"username"`
	Password          string        `json:"password" yaml:"password"`
	DBName            string        `json:"dbname" yaml:"dbname"`
	SSLMode           string        `json:"sslmode" yaml:"sslmode"`
	MaxIdleConns      int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxOpenConns      int           `json:"max_open_conns" yaml:"max_open_conns"`
	ConnMaxLifetime   time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	ConnectTimeout    time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// EnableReconnect retries a failed connect MaxReconnectTries times and lets
	// HealthCheck reopen a broken connection.
	EnableReconnect   bool          `json:"enable_reconnect" yaml:"enable_reconnect"`
	ReconnectInterval time.Duration `json:"reconnect_interval" yaml:"reconnect_interval"`
	MaxReconnectTries int           `json:"max_reconnect_tries" yaml:"max_reconnect_tries"`
	EnableQueryLog    bool          `json:"enable_query_log" yaml:"enable_query_log"`
	SlowQueryTime     time.Duration `json:"slow_query_time" yaml:"slow_query_time"`
}

// MigrateConfig controls schema creation on startup.
type MigrateConfig struct {
	EnableMigrateOnStartup bool `json:"enable_migrate_on_startup" yaml:"enable_migrate_on_startup"`
	EnableForeignKey       bool `json:"enable_foreign_key" yaml:"enable_foreign_key"`
	// AllowColumnAdd adds declared columns missing from existing tables.
	AllowColumnAdd bool `json:"allow_column_add" yaml:"allow_column_add"`
	// SchemaFile is a YAML schema description; empty means the built-in auth tables.
	SchemaFile string `json:"schema_file" yaml:"schema_file"`
}

// Config aggregates connection and migration settings.
type Config struct {
	Connection ConnectionConfig `json:"connection" yaml:"connection"`
	Migrate    MigrateConfig    `json:"migrate" yaml:"migrate"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxIdleConns:      10,
		MaxOpenConns:      100,
		ConnMaxLifetime:   time.Hour,
		ConnMaxIdleTime:   time.Minute * 30,
		ConnectTimeout:    time.Second * 10,
		ReadTimeout:       time.Second * 30,
		WriteTimeout:      time.Second * 30,
		EnableReconnect:   true,
		ReconnectInterval: time.Second * 5,
		MaxReconnectTries: 3,
		EnableQueryLog:    false,
		SlowQueryTime:     time.Second * 2,
	}
}

// DefaultConfig returns the defaults LoadConfig starts from.
func DefaultConfig() *Config {
	return &Config{
		Connection: *DefaultConnectionConfig(),
		Migrate:    MigrateConfig{EnableForeignKey: true},
	}
}

// ParseConfig decodes YAML over DefaultConfig, so omitted keys keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads a YAML database config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database config: %w", err)
	}
	return ParseConfig(data)
}
