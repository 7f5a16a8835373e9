// Package executor runs catalog queries against the analytics
// database and marshals rows into typed payload fragments. SQL text
// only ever comes from the catalog; this package binds parameters and
// never composes queries.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker"

	"github.com/itsneelabh/insights-agent/internal/catalog"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/schema"
	"github.com/itsneelabh/insights-agent/internal/utils"
)

// Meta describes one query execution for tracing and agent steps.
type Meta struct {
	QueryID    string `json:"query_id"`
	RowCount   int    `json:"row_count"`
	DurationMs int64  `json:"duration_ms"`
	Cached     bool   `json:"cached"`
}

// Executor runs one allowlisted query and returns its typed fragment.
type Executor interface {
	Execute(ctx context.Context, id string, params map[string]interface{}) (*schema.Fragment, *Meta, error)
}

// SQLExecutor is the production executor backed by sqlx over the
// pgx stdlib driver. Database calls go through a circuit breaker so a
// dead database fails fast instead of stacking up timeouts.
type SQLExecutor struct {
	db      *sqlx.DB
	catalog *catalog.Catalog
	logger  logging.Logger
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewSQLExecutor builds an executor with a per-query timeout.
func NewSQLExecutor(db *sqlx.DB, cat *catalog.Catalog, timeout time.Duration, logger logging.Logger) *SQLExecutor {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analytics-db",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Database circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	return &SQLExecutor{db: db, catalog: cat, logger: logger, timeout: timeout, breaker: breaker}
}

// Execute validates and canonicalizes params, runs the entry's
// template and marshals rows into the entry's output shape. A query
// that runs fine but returns no rows yields an Empty fragment, not an
// error.
func (x *SQLExecutor) Execute(ctx context.Context, id string, params map[string]interface{}) (*schema.Fragment, *Meta, error) {
	entry, ok := x.catalog.Lookup(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", catalog.ErrUnknownQuery, id)
	}

	bound, dropped, err := catalog.BuildParams(entry, params)
	if err != nil {
		return nil, nil, err
	}
	if len(dropped) > 0 {
		x.logger.Warn("Dropping unknown query params", map[string]interface{}{
			"query_id": id,
			"params":   dropped,
		})
	}

	start := time.Now()
	rows, err := x.query(ctx, entry, bound)
	meta := &Meta{QueryID: id, RowCount: len(rows), DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		x.logger.Error("Query execution failed", map[string]interface{}{
			"query_id":    id,
			"error":       err.Error(),
			"duration_ms": meta.DurationMs,
		})
		return nil, meta, err
	}

	x.logger.Debug("Query executed", map[string]interface{}{
		"query_id":    id,
		"rows":        meta.RowCount,
		"duration_ms": meta.DurationMs,
	})

	frag, err := Marshal(entry, rows, bound)
	if err != nil {
		return nil, meta, err
	}
	return frag, meta, nil
}

func (x *SQLExecutor) query(ctx context.Context, entry *catalog.Entry, bound map[string]interface{}) ([]map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	// Declared optional params that were not supplied bind as NULL.
	args := make(map[string]interface{}, len(entry.Params))
	for _, p := range entry.Params {
		args[p.Name] = nil
	}
	for k, v := range bound {
		args[k] = v
	}

	query, list, err := sqlx.Named(entry.Template, args)
	if err != nil {
		return nil, fmt.Errorf("binding params for %q: %w", entry.ID, err)
	}
	query = x.db.Rebind(query)

	result, err := x.breaker.Execute(func() (interface{}, error) {
		rows, err := x.db.QueryxContext(ctx, query, list...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []map[string]interface{}
		for rows.Next() {
			row := map[string]interface{}{}
			if err := rows.MapScan(row); err != nil {
				return nil, err
			}
			out = append(out, utils.NormalizeRow(row))
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	return result.([]map[string]interface{}), nil
}

// classifyError maps transport and database failures onto the engine's
// upstream error kinds. Caller cancellation passes through untouched.
func classifyError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: circuit breaker open", ErrUpstreamUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamError, err)
}
