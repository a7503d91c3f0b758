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

var bunSqlSilentMode atomic.Bool

// EnableBunSqlSilent mutes the query hooks, used while migrations run.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode.Store(b)
}

var (
	selectColor = color.New(color.FgGreen)
	insertColor = color.New(color.FgBlue)
	updateColor = color.New(color.FgYellow)
	deleteColor = color.New(color.FgMagenta)
	otherColor  = color.New(color.FgRed)
	tagColor    = color.New(color.FgCyan)
	slowColor   = color.New(color.FgYellow, color.BlinkSlow)
	errColor    = color.New(color.BgRed, color.FgWhite)
)

// QueryHook prints executed statements, colored by operation. Failed
// statements are printed by default; every statement when verbose.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

type QueryHookOption func(*QueryHook)

// WithEnv reads the hook mode from an env variable: "0" disables the hook,
// "2" enables verbose output and any other value prints failures.
func WithEnv(name string) QueryHookOption {
	return func(h *QueryHook) { h.envName = name }
}

func WithVerbose(verbose bool) QueryHookOption {
	return func(h *QueryHook) { h.verbose = verbose }
}

func WithWriter(w io.Writer) QueryHookOption {
	return func(h *QueryHook) { h.writer = w }
}

func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{enabled: true, writer: os.Stderr}
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
	if h.envName != "" {
		if env, ok := os.LookupEnv(h.envName); ok {
			enabled = env != "" && env != "0"
			verbose = env == "2"
		}
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
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		tagColor.Sprintf("%10s", "[BUN]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", operationColor(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", errColor.Sprintf(" %s: %s ", typ, event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(operation string) *color.Color {
	switch operation {
	case "SELECT":
		return selectColor
	case "INSERT":
		return insertColor
	case "UPDATE":
		return updateColor
	case "DELETE":
		return deleteColor
	default:
		return otherColor
	}
}

// slowQueryHook reports statements slower than slowTime through the
// database logger.
type slowQueryHook struct {
	slowTime time.Duration
	logger   Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() || event.Err != nil || h.logger == nil {
		return
	}
	duration := time.Since(event.StartTime)
	if duration > h.slowTime {
		h.logger.Warn(slowColor.Sprint("Database slow query detected"),
			"duration", duration,
			"slow_threshold", h.slowTime,
			"operation", event.Operation(),
			"query", event.Query,
		)
	}
}
