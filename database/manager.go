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
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	bunschema "github.com/uptrace/bun/schema"

	"github.com/tomoncle/authbridge/schema"
)

const pingTimeout = 5 * time.Second

// bunManager owns one bun connection and the tables it migrates.
type bunManager struct {
	config  *ConnectionConfig
	migrate MigrateConfig
	tables  []schema.Table

	mu     sync.RWMutex
	db     *bun.DB
	logger Logger
}

// ManagerOption configures a database manager.
type ManagerOption func(*bunManager)

// WithMigrateConfig sets the options RunMigrations applies.
func WithMigrateConfig(cfg MigrateConfig) ManagerOption {
	return func(dm *bunManager) { dm.migrate = cfg }
}

// WithTables sets the tables RunMigrations creates instead of the registered ones.
func WithTables(tables []schema.Table) ManagerOption {
	return func(dm *bunManager) { dm.tables = tables }
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// If config is nil, a sensible default configuration is used.
func NewDatabaseManager(config *ConnectionConfig, opts ...ManagerOption) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	dm := &bunManager{
		config:  config,
		migrate: MigrateConfig{EnableForeignKey: true},
	}
	for _, opt := range opts {
		opt(dm)
	}
	return dm
}

func (dm *bunManager) log() Logger {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if dm.logger != nil {
		return dm.logger
	}
	return GetLogger()
}

// attempts is the number of connect tries: one, plus the retries reconnect allows.
func (dm *bunManager) attempts() int {
	if dm.config.EnableReconnect && dm.config.MaxReconnectTries > 0 {
		return 1 + dm.config.MaxReconnectTries
	}
	return 1
}

// Connect opens and pings the database. With reconnect enabled a failed
// attempt is retried every ReconnectInterval until the tries run out or ctx ends.
func (dm *bunManager) Connect(ctx context.Context) error {
	if dm.GetDB() != nil {
		return nil
	}
	attempts := dm.attempts()
	var lastErr error
	for try := 1; try <= attempts; try++ {
		db, err := dm.open(ctx)
		if err == nil {
			dm.mu.Lock()
			dm.db = db
			dm.mu.Unlock()
			dm.log().Info("Database connected", "type", dm.config.Type, "name", dm.config.DBName, "try", try)
			return nil
		}
		lastErr = err
		if try == attempts {
			break
		}
		dm.log().Warn("Database connect failed, retrying", "error", err, "try", try, "wait", dm.config.ReconnectInterval)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to connect to %s database: %w", dm.config.Type, ctx.Err())
		case <-time.After(dm.config.ReconnectInterval):
		}
	}
	return fmt.Errorf("failed to connect to %s database after %d attempt(s): %w", dm.config.Type, attempts, lastErr)
}

// open builds a pooled, hooked bun.DB and verifies it answers a ping.
func (dm *bunManager) open(ctx context.Context) (*bun.DB, error) {
	if dm.config.ConnectTimeout <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}
	driver, dsn, dialect, err := dm.driver()
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)

	db := bun.NewDB(sqlDB, dialect)
	if dm.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	} else {
		db.AddQueryHook(NewQueryHook())
	}
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: dm.config.SlowQueryTime, logger: dm.log()})
	}

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// driver returns the database/sql driver name, DSN and bun dialect for the config.
func (dm *bunManager) driver() (string, string, bunschema.Dialect, error) {
	switch dm.config.Type {
	case "mysql":
		return "mysql", mysqlDSN(dm.config), mysqldialect.New(), nil
	case "postgres", "postgresql":
		return "postgres", postgresDSN(dm.config), pgdialect.New(), nil
	case "sqlite", "sqlite3":
		return sqliteshim.ShimName, sqliteDSN(dm.config.DBName), sqlitedialect.New(), nil
	}
	return "", "", nil, fmt.Errorf("unsupported database type: %s", dm.config.Type)
}

func mysqlDSN(c *ConnectionConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Timeout = c.ConnectTimeout
	cfg.ReadTimeout = c.ReadTimeout
	cfg.WriteTimeout = c.WriteTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func postgresDSN(c *ConnectionConfig) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// sqliteDSN appends ".db" to bare names; memory databases and explicit
// file names pass through.
func sqliteDSN(name string) string {
	switch {
	case name == "" || name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasPrefix(name, "file:"),
		strings.HasSuffix(name, ".db"),
		strings.HasSuffix(name, ".sqlite"),
		strings.HasSuffix(name, ".sqlite3"):
		return name
	}
	return name + ".db"
}

func (dm *bunManager) Disconnect() error {
	dm.mu.Lock()
	db := dm.db
	dm.db = nil
	dm.mu.Unlock()
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		dm.log().Error("Failed to close database connection", "error", err)
		return err
	}
	dm.log().Info("Database connection closed")
	return nil
}

func (dm *bunManager) Reconnect(ctx context.Context) error {
	dm.log().Info("Reconnecting to the database", "type", dm.config.Type)
	if err := dm.Disconnect(); err != nil {
		dm.log().Warn("Error disconnecting existing connection", "error", err)
	}
	return dm.Connect(ctx)
}

func (dm *bunManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *bunManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *bunManager) GetSQLDB() *sql.DB {
	if db := dm.GetDB(); db != nil {
		return db.DB
	}
	return nil
}

// HealthCheck pings the database. A failed ping is followed by one reconnect
// when reconnect is enabled; Reconnected reports that it succeeded.
func (dm *bunManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{Type: dm.config.Type, LastCheckTime: start}

	err := dm.pingWithTimeout(ctx)
	if err != nil && dm.GetDB() != nil && dm.config.EnableReconnect {
		dm.log().Warn("Database health check failed", "error", err)
		if rerr := dm.Reconnect(ctx); rerr == nil {
			status.Reconnected = true
			err = dm.pingWithTimeout(ctx)
		} else {
			err = rerr
		}
	}
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}

	stats := dm.GetStats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConns
	return status
}

func (dm *bunManager) pingWithTimeout(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return dm.Ping(ctx)
}

func (dm *bunManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
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

func (dm *bunManager) migrationTables() []schema.Table {
	if dm.tables != nil {
		return dm.tables
	}
	return RegisteredTables()
}

func (dm *bunManager) RunMigrations(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return NewMigrationManager(db, dm.log(), dm.migrationTables(), dm.migrate).RunMigrations(ctx)
}

// SchemaStatus reports, without changing anything, whether the tables the
// manager migrates exist with all their columns and whether their schema
// version has been recorded.
func (dm *bunManager) SchemaStatus(ctx context.Context) (*SchemaStatus, error) {
	db := dm.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	tables := dm.migrationTables()
	version, err := SchemaVersion(tables)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{Version: version}

	applied, err := NewMigrationManager(db, dm.log(), tables, dm.migrate).IsApplied(ctx, version)
	if err != nil {
		return nil, err
	}
	status.Applied = applied

	fmter := bunschema.NewFormatter(db.Dialect())
	for _, t := range schema.Sorted(tables) {
		existing, err := listExistingColumns(ctx, db, t.TableName())
		if err != nil {
			return nil, fmt.Errorf("failed to list columns of %s: %w", t.TableName(), err)
		}
		ts := TableStatus{Name: t.TableName(), Exists: len(existing) > 0}
		if ts.Exists {
			for _, c := range desiredColumns(fmter, t) {
				if _, ok := existing[strings.ToLower(c.Name)]; !ok {
					ts.MissingColumns = append(ts.MissingColumns, c.Name)
				}
			}
		}
		status.Tables = append(status.Tables, ts)
	}
	return status, nil
}

func (dm *bunManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}

type slowQueryHook struct {
	slowTime time.Duration
	logger   Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil {
		return
	}
	if duration := time.Since(event.StartTime); duration > h.slowTime {
		h.logger.Warn("Database slow query detected",
			"duration", duration,
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
	}
}
