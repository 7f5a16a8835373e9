package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/insights-agent/internal/catalog"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

func newTestExecutor(t *testing.T) (*SQLExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.New()
	require.NoError(t, err)

	x := NewSQLExecutor(sqlx.NewDb(db, "sqlmock"), cat, 5*time.Second, &logging.NoOpLogger{})
	return x, mock
}

func TestExecuteKPIQuery(t *testing.T) {
	x, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"total_sales", "total_orders", "avg_order_value", "total_units"}).
			AddRow(4567890.50, 234, 19521.32, 567),
	)

	frag, meta, err := x.Execute(context.Background(), "kpi_sales_summary", map[string]interface{}{
		"date_from": "2025-11-01", "date_to": "2025-12-01",
	})
	require.NoError(t, err)
	assert.Equal(t, schema.OutputKPI, frag.Kind)
	assert.Equal(t, "kpi.sales_summary", frag.Ref)
	assert.Equal(t, 4567890.50, frag.KPIs["total_sales"])
	assert.Equal(t, 234.0, frag.KPIs["total_orders"])
	assert.Equal(t, 1, meta.RowCount)
	assert.False(t, frag.Empty)
}

func TestExecuteTimeSeriesQuery(t *testing.T) {
	x, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"date", "value", "order_count"}).
			AddRow("2025-11-01", 120000.0, 12).
			AddRow("2025-11-02", 98000.0, 9),
	)

	frag, _, err := x.Execute(context.Background(), "ts_sales_by_day", map[string]interface{}{
		"date_from": "2025-11-01", "date_to": "2025-12-01",
	})
	require.NoError(t, err)
	require.NotNil(t, frag.TimeSeries)
	assert.Equal(t, "sales_by_day", frag.TimeSeries.SeriesName)
	require.Len(t, frag.TimeSeries.Points, 2)
	assert.Equal(t, "2025-11-01", frag.TimeSeries.Points[0].Date)
	assert.Equal(t, 120000.0, frag.TimeSeries.Points[0].Value)
}

func TestExecuteTopItemsQuery(t *testing.T) {
	x, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"rank", "id", "title", "value", "units_sold"}).
			AddRow(1, "MLA123", "Kit Inyectores", 456780.0, 45).
			AddRow(2, "MLA456", "Bomba de Agua", 345670.0, 32),
	)

	frag, _, err := x.Execute(context.Background(), "top_products_by_revenue", nil)
	require.NoError(t, err)
	require.NotNil(t, frag.TopItems)
	assert.Equal(t, "products_by_revenue", frag.TopItems.RankingName)
	require.Len(t, frag.TopItems.Items, 2)
	assert.Equal(t, 1, frag.TopItems.Items[0].Rank)
	assert.Equal(t, "Kit Inyectores", frag.TopItems.Items[0].Title)
	assert.Contains(t, frag.TopItems.Items[0].Extra, "units_sold")
}

func TestExecuteComparisonQuery(t *testing.T) {
	x, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"period", "total_sales", "total_orders"}).
			AddRow("current", 200000.0, 20).
			AddRow("previous", 100000.0, 10),
	)

	frag, _, err := x.Execute(context.Background(), "comparison_sales_periods", map[string]interface{}{
		"date_from": "2025-11-01", "date_to": "2025-12-01",
		"prev_date_from": "2025-10-01", "prev_date_to": "2025-11-01",
	})
	require.NoError(t, err)
	require.NotNil(t, frag.Comparison)
	assert.Equal(t, 200000.0, frag.Comparison.CurrentPeriod.KPIs["total_sales"])
	assert.Equal(t, 100000.0, frag.Comparison.Deltas["total_sales"])
	assert.Equal(t, 100.0, frag.Comparison.DeltaPcts["total_sales"])
	assert.Equal(t, "2025-11-01", frag.Comparison.CurrentPeriod.DateFrom)
}

func TestExecuteEmptyKPIResultIsNotError(t *testing.T) {
	x, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"total_sales"}))

	frag, _, err := x.Execute(context.Background(), "kpi_sales_summary", map[string]interface{}{
		"date_from": "2025-11-01", "date_to": "2025-12-01",
	})
	require.NoError(t, err)
	assert.True(t, frag.Empty)
}

func TestExecuteUnknownQuery(t *testing.T) {
	x, _ := newTestExecutor(t)

	_, _, err := x.Execute(context.Background(), "no_such_query", nil)
	assert.ErrorIs(t, err, catalog.ErrUnknownQuery)
}

func TestExecuteInvalidParams(t *testing.T) {
	x, _ := newTestExecutor(t)

	_, _, err := x.Execute(context.Background(), "ts_sales_by_day", map[string]interface{}{
		"limit": "not-a-number",
	})
	assert.ErrorIs(t, err, catalog.ErrInvalidParams)
}

func TestExecuteClassifiesUpstreamErrors(t *testing.T) {
	x, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation does not exist"))
	_, _, err := x.Execute(context.Background(), "recent_orders", nil)
	assert.ErrorIs(t, err, ErrUpstreamError)

	mock.ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)
	_, _, err = x.Execute(context.Background(), "recent_orders", nil)
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
}

func TestExecutePropagatesCancellation(t *testing.T) {
	x, mock := newTestExecutor(t)

	mock.ExpectQuery("SELECT").WillReturnError(context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := x.Execute(ctx, "recent_orders", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	x, mock := newTestExecutor(t)

	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))
		_, _, err := x.Execute(context.Background(), "recent_orders", nil)
		require.Error(t, err)
	}

	// Breaker is now open; no further database calls are made.
	_, _, err := x.Execute(context.Background(), "recent_orders", nil)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestDemoExecutorShapes(t *testing.T) {
	cat, err := catalog.New()
	require.NoError(t, err)
	d := NewDemoExecutor(cat)

	frag, _, err := d.Execute(context.Background(), "kpi_sales_summary", nil)
	require.NoError(t, err)
	assert.Equal(t, 4567890.50, frag.KPIs["total_sales"])

	frag, _, err = d.Execute(context.Background(), "ts_sales_by_day", nil)
	require.NoError(t, err)
	assert.Len(t, frag.TimeSeries.Points, 30)

	frag, _, err = d.Execute(context.Background(), "comparison_sales_periods", nil)
	require.NoError(t, err)
	require.NotNil(t, frag.Comparison)
	assert.Positive(t, frag.Comparison.Deltas["total_sales"])

	_, _, err = d.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, catalog.ErrUnknownQuery)
}
