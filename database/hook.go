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
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

// QueryLogEnv switches the query hook on ("1") or to verbose mode ("2").
const QueryLogEnv = "AUTHBRIDGE_SQL"

var bunSqlSilentMode atomic.Bool

// EnableBunSqlSilent mutes the query hook, used while migrations run.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode.Store(b)
}

// QueryHook prints executed statements with the operation colour coded.
// By default only failing statements are printed; verbose prints all.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

// QueryHookOption configures a QueryHook.
type QueryHookOption func(*QueryHook)

// WithQueryHookEnabled sets whether the hook prints anything.
func WithQueryHookEnabled(on bool) QueryHookOption {
	return func(h *QueryHook) { h.enabled = on }
}

// WithQueryHookVerbose prints successful statements too.
func WithQueryHookVerbose(on bool) QueryHookOption {
	return func(h *QueryHook) { h.verbose = on }
}

// WithQueryHookWriter sets the output, os.Stderr by default.
func WithQueryHookWriter(w io.Writer) QueryHookOption {
	return func(h *QueryHook) { h.writer = w }
}

// WithQueryHookEnv names the environment variable that overrides the options.
func WithQueryHookEnv(name string) QueryHookOption {
	return func(h *QueryHook) { h.envName = name }
}

// NewQueryHook builds a QueryHook controlled by QueryLogEnv.
func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{envName: QueryLogEnv, writer: os.Stderr}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() {
		return
	}
	enabled := h.enabled
	verbose := h.verbose
	if env, ok := os.LookupEnv(h.envName); ok && h.envName != "" {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}

	if !enabled {
		return
	}

	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	dur := now.Sub(event.StartTime)

	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		color.CyanString("%8s", "[BUN]"),
		fmt.Sprintf("%12s", dur.Round(time.Microsecond)),
		" ", formatOperationColor(event),
	}

	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args,
			"\t",
			color.New(color.BgRed).Sprintf(" %s ", typ+": "+event.Err.Error()),
		)
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func formatOperationColor(event *bun.QueryEvent) string {
	switch event.Operation() {
	case "SELECT":
		return color.GreenString("%s", event.Query)
	case "INSERT":
		return color.BlueString("%s", event.Query)
	case "UPDATE":
		return color.YellowString("%s", event.Query)
	case "DELETE":
		return color.MagentaString("%s", event.Query)
	default:
		return color.RedString("%s", event.Query)
	}
}
