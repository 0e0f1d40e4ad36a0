package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup parses the variable key, keeping def when it is unset or does
// not parse.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func envString(key, def string) string {
	return lookup(key, def, func(s string) (string, error) { return s, nil })
}

func envInt(key string, def int) int {
	return lookup(key, def, strconv.Atoi)
}

func envInt64(key string, def int64) int64 {
	return lookup(key, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func envBool(key string, def bool) bool {
	return lookup(key, def, strconv.ParseBool)
}

func envFloat(key string, def float64) float64 {
	return lookup(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func envDuration(key string, def time.Duration) time.Duration {
	return lookup(key, def, time.ParseDuration)
}

// envFields splits a whitespace separated variable.
func envFields(key string) []string {
	return strings.Fields(os.Getenv(key))
}
