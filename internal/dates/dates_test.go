package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-12-23 is a Tuesday.
var now = time.Date(2025, time.December, 23, 15, 4, 5, 0, time.UTC)

func TestExtractRange(t *testing.T) {
	tests := []struct {
		question string
		from, to string
	}{
		{"que vendimos hoy", "2025-12-23", "2025-12-24"},
		{"cuales fueron las ventas de ayer", "2025-12-22", "2025-12-23"},
		{"productos vendidos esta semana", "2025-12-22", "2025-12-29"},
		{"ordenes de la semana pasada", "2025-12-15", "2025-12-22"},
		{"como van las ventas este mes", "2025-12-01", "2026-01-01"},
		{"reporte del mes pasado", "2025-11-01", "2025-12-01"},
		{"ventas de los ultimos 7 dias", "2025-12-16", "2025-12-24"},
		{"ventas de las últimas 2 semanas", "2025-12-09", "2025-12-24"},
		{"ventas de diciembre 2024", "2024-12-01", "2025-01-01"},
		{"ventas de noviembre", "2025-11-01", "2025-12-01"},
		{"como me fue en NOVIEMBRE", "2025-11-01", "2025-12-01"},
		{"resultados del q4 2024", "2024-10-01", "2025-01-01"},
		{"primer trimestre de 2025", "2025-01-01", "2025-04-01"},
		{"que paso el 15 de noviembre 2024", "2024-11-15", "2024-11-16"},
		{"del 1 al 15 de diciembre 2024", "2024-12-01", "2024-12-16"},
		{"ventas del año 2024", "2024-01-01", "2025-01-01"},
		{"como me fue en el black friday 2024", "2024-11-01", "2024-12-01"},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			r, ok := ExtractRange(tt.question, now)
			require.True(t, ok)
			assert.Equal(t, tt.from, r.From)
			assert.Equal(t, tt.to, r.To)
		})
	}
}

func TestExtractRangeNoPeriod(t *testing.T) {
	for _, q := range []string{"hola como estas", "cuantos productos tenemos", "gracias"} {
		_, ok := ExtractRange(q, now)
		assert.False(t, ok, q)
	}
}

func TestExtractComparison(t *testing.T) {
	cur, prev, ok := ExtractComparison("comparame noviembre vs octubre", now)
	require.True(t, ok)
	assert.Equal(t, Range{From: "2025-11-01", To: "2025-12-01"}, cur)
	assert.Equal(t, Range{From: "2025-10-01", To: "2025-11-01"}, prev)
}

func TestExtractComparisonShiftsPreviousYear(t *testing.T) {
	cur, prev, ok := ExtractComparison("compara enero versus diciembre", now)
	require.True(t, ok)
	assert.Equal(t, "2025-01-01", cur.From)
	assert.Equal(t, "2024-12-01", prev.From)
	assert.Equal(t, "2025-01-01", prev.To)
}

func TestExtractComparisonRequiresBothSides(t *testing.T) {
	_, _, ok := ExtractComparison("comparame noviembre vs el plan", now)
	assert.False(t, ok)

	_, _, ok = ExtractComparison("como van las ventas de noviembre", now)
	assert.False(t, ok)
}

func TestDefaultRange(t *testing.T) {
	r := DefaultRange(now)
	assert.Equal(t, "2025-11-23", r.From)
	assert.Equal(t, "2025-12-24", r.To)
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "ultimos 30 dias", FormatContext(Range{}))
	assert.Equal(t, "noviembre 2025", FormatContext(Range{From: "2025-11-01", To: "2025-12-01"}))
	assert.Equal(t, "22/12/2025", FormatContext(Range{From: "2025-12-22", To: "2025-12-23"}))
	assert.Equal(t, "01/12/2025 a 15/12/2025", FormatContext(Range{From: "2025-12-01", To: "2025-12-16"}))
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, "2025-10-31", AddDays("2025-11-01", -1))
	assert.Equal(t, "2025-12-01", AddDays("2025-11-28", 3))
	assert.Equal(t, "not-a-date", AddDays("not-a-date", -1))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "como estan las ventas del año", Normalize("  Cómo están las VENTAS del año "))
}
