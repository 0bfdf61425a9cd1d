package entity

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Convert turns a value read from a driver, a cache codec or user code into V.
// nil converts to the zero value.
func Convert[V any](v any) (V, error) {
	var out V
	if v == nil {
		return out, nil
	}
	if same, ok := v.(V); ok {
		return same, nil
	}
	// sql.Null* wrappers and other valuers are unwrapped to their driver form.
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return out, err
		}
		if dv == nil {
			return out, nil
		}
		v = dv
		if same, ok := v.(V); ok {
			return same, nil
		}
	}
	if scanner, ok := any(&out).(sql.Scanner); ok {
		if err := scanner.Scan(v); err != nil {
			return out, err
		}
		return out, nil
	}

	var (
		res any
		err error
	)
	switch any(out).(type) {
	case int:
		var n int64
		n, err = toInt64(v)
		res = int(n)
	case int8:
		res, err = toIntN[int8](v, math.MinInt8, math.MaxInt8)
	case int16:
		res, err = toIntN[int16](v, math.MinInt16, math.MaxInt16)
	case int32:
		res, err = toIntN[int32](v, math.MinInt32, math.MaxInt32)
	case int64:
		res, err = toInt64(v)
	case uint:
		res, err = toUintN[uint](v, math.MaxUint)
	case uint8:
		res, err = toUintN[uint8](v, math.MaxUint8)
	case uint16:
		res, err = toUintN[uint16](v, math.MaxUint16)
	case uint32:
		res, err = toUintN[uint32](v, math.MaxUint32)
	case uint64:
		res, err = toUintN[uint64](v, math.MaxUint64)
	case float32:
		var f float64
		f, err = toFloat64(v)
		res = float32(f)
	case float64:
		res, err = toFloat64(v)
	case string:
		res, err = toString(v)
	case []byte:
		var s string
		s, err = toString(v)
		res = []byte(s)
	case bool:
		res, err = toBool(v)
	case time.Time:
		res, err = toTime(v)
	case time.Duration:
		var n int64
		if s, ok := v.(string); ok {
			var d time.Duration
			d, err = time.ParseDuration(s)
			res = d
			break
		}
		n, err = toInt64(v)
		res = time.Duration(n)
	default:
		return out, fmt.Errorf("unsupported conversion from %T to %T", v, out)
	}
	if err != nil {
		return out, err
	}
	return res.(V), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case time.Duration:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to an integer", v)
	}
}

func uintToInt64(n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64", n)
	}
	return int64(n), nil
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func toIntN[N int8 | int16 | int32](v any, lo, hi int64) (N, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("value %d out of range for %T", n, N(0))
	}
	return N(n), nil
}

func toUintN[N uint | uint8 | uint16 | uint32 | uint64](v any, hi uint64) (N, error) {
	var u uint64
	switch n := v.(type) {
	case uint:
		u = uint64(n)
	case uint64:
		u = n
	case string:
		parsed, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, err
		}
		u = parsed
	default:
		i, err := toInt64(v)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			return 0, fmt.Errorf("negative value %d for %T", i, N(0))
		}
		u = uint64(i)
	}
	if u > hi {
		return 0, fmt.Errorf("value %d out of range for %T", u, N(0))
	}
	return N(u), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(n, 64)
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	default:
		i, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %T to a float", v)
		}
		return float64(i), nil
	}
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("cannot convert %T to a string", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	case []byte:
		return strconv.ParseBool(string(b))
	default:
		n, err := toInt64(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert %T to a bool", v)
		}
		return n != 0, nil
	}
}

func toTime(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	case int64:
		return time.UnixMilli(t).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to a time", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}
