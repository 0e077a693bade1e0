package utils

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cast"
)

var (
	dotEnvOnce   sync.Once
	dotEnvValues map[string]string
)

// LoadEnv reads .env.<env> (or .env when env is empty) into the process environment
// without overriding variables that are already set.
func LoadEnv(env string) error {
	name := ".env"
	if env != "" {
		name = ".env." + env
	}
	values, err := parseDotEnv(name)
	if err != nil {
		return err
	}
	for k, v := range values {
		if _, ok := os.LookupEnv(k); !ok {
			_ = os.Setenv(k, v)
		}
	}
	return nil
}

func GetEnv(key string) string {
	v, _ := LookupEnv(key)
	return v
}

func GetBoolEnv(key string) bool {
	return cast.ToBool(GetEnv(key))
}

func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

func GetFloatEnv(key string) float64 {
	return cast.ToFloat64(GetEnv(key))
}

// LookupEnv resolves key from the process environment first, then from ./.env.
func LookupEnv(key string) (value string, found bool) {
	key = strings.ToUpper(key)
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	dotEnvOnce.Do(func() {
		dotEnvValues, _ = parseDotEnv(".env")
	})
	v, ok := dotEnvValues[key]
	return v, ok
}

func parseDotEnv(name string) (map[string]string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		v := strings.TrimSpace(line)
		if v == "" || v[0] == '#' || !strings.Contains(v, "=") {
			continue
		}
		kv := strings.SplitN(v, "=", 2)
		k := strings.ToUpper(strings.TrimSpace(kv[0]))
		values[k] = strings.Trim(strings.TrimSpace(kv[1]), `"'`)
	}
	return values, nil
}
