// Package utils holds value-conversion helpers for marshaling
// database rows into typed payload shapes. Drivers return numerics as
// int64, float64, []byte or string depending on the column type, so
// every row read goes through these.
package utils

import (
	"strconv"
	"time"
)

// ToFloat64 converts a driver value to float64. Returns false for nil
// and non-numeric values.
func ToFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt converts a driver value to int. Returns false for nil and
// non-integer values.
func ToInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case []byte:
		i, err := strconv.Atoi(string(n))
		return i, err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

// ToString renders a driver value as a string. Timestamps become
// ISO-8601 dates, byte slices are decoded, nil becomes "".
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}

// NormalizeRow rewrites []byte values in a scanned row to strings so
// rows serialize as JSON text instead of base64.
func NormalizeRow(row map[string]interface{}) map[string]interface{} {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row
}
