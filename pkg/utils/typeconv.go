package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Cast type names accepted in job files.
const (
	CastInt      = "int"
	CastInt64    = "int64"
	CastFloat    = "float"
	CastString   = "string"
	CastBool     = "bool"
	CastDateTime = "datetime"
)

// Converter turns a raw driver value into the value written to the destination.
type Converter func(val interface{}) (interface{}, error)

// ConverterFor returns the conversion for a cast type name.
func ConverterFor(castType string) (Converter, error) {
	switch strings.ToLower(strings.TrimSpace(castType)) {
	case CastInt, CastInt64:
		return func(v interface{}) (interface{}, error) {
			if v == nil {
				return nil, nil
			}
			return ConvertToInt64(v)
		}, nil
	case CastFloat:
		return func(v interface{}) (interface{}, error) {
			if v == nil {
				return nil, nil
			}
			return ConvertToFloat(v)
		}, nil
	case CastString:
		return func(v interface{}) (interface{}, error) {
			if v == nil {
				return nil, nil
			}
			return ConvertToString(v), nil
		}, nil
	case CastBool:
		return func(v interface{}) (interface{}, error) {
			if v == nil {
				return nil, nil
			}
			return ConvertToBool(v)
		}, nil
	case CastDateTime:
		return func(v interface{}) (interface{}, error) {
			if v == nil {
				return nil, nil
			}
			return ConvertDateTime(v)
		}, nil
	default:
		return nil, fmt.Errorf("unknown cast type %q", castType)
	}
}

func ConvertToString(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ConvertDateTime accepts time values and the common textual layouts drivers
// hand back for temporal columns.
func ConvertDateTime(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		formats := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05.999999999",
			"2006-01-02 15:04:05",
			"2006-01-02",
		}
		for _, f := range formats {
			if t, err := time.Parse(f, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return ConvertDateTime(string(v))
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", val)
	}
}

func ConvertToInt64(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", val)
	}
}

// floatToInt64 accepts only whole numbers that fit in an int64.
func floatToInt64(v float64) (int64, error) {
	const limit = 1 << 63
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -limit || v >= limit {
		return 0, fmt.Errorf("%v out of int64 range", v)
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%v is not a whole number", v)
	}
	return int64(v), nil
}

func ConvertToFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", val)
	}
}

func ConvertToBool(val interface{}) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(v)))
	default:
		return false, fmt.Errorf("cannot convert %T to bool", val)
	}
}
