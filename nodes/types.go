// Package nodes holds helpers shared by the node handler packages: typed access to
// node config, placeholder templates and value formatting.
package nodes

import (
	"fmt"
	"strconv"
)

// String reads a string config value. Non-string scalars are formatted.
func String(cfg map[string]any, key, def string) string {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Float reads a number, accepting JSON numbers and numeric strings.
func Float(cfg map[string]any, key string, def float64) float64 {
	if f, ok := toFloat(cfg[key]); ok {
		return f
	}
	return def
}

func Int(cfg map[string]any, key string, def int) int {
	if f, ok := toFloat(cfg[key]); ok {
		return int(f)
	}
	return def
}

func Bool(cfg map[string]any, key string, def bool) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func Map(cfg map[string]any, key string) map[string]any {
	m, _ := cfg[key].(map[string]any)
	return m
}

// StringMap reads an object of strings, such as HTTP headers.
func StringMap(cfg map[string]any, key string) map[string]string {
	m := Map(cfg, key)
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Number converts a value to float64 if it is a number or a numeric string.
func Number(v any) (float64, bool) { return toFloat(v) }
