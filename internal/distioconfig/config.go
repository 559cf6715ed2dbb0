package distioconfig

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	envOnce sync.Once
	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}
)

// loadDotEnv loads a .env file from the working directory, if one exists,
// once per process. Any error from loading it, a missing or a malformed
// file alike, is ignored.
func loadDotEnv() {
	envOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// Load parses environment variables into cfg using its `env` struct tags.
// The first call for a given type T parses and caches the result; later
// calls with the same T copy the cached value into cfg without touching the
// environment again.
func Load[T any](cfg *T) error {
	loadDotEnv()

	t := reflect.TypeOf(*cfg)

	cacheMu.Lock()
	if cached, ok := cache[t]; ok {
		cacheMu.Unlock()
		*cfg = cached.(T)
		return nil
	}
	cacheMu.Unlock()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("distioconfig: parse %s: %w", t, err)
	}

	cacheMu.Lock()
	cache[t] = *cfg
	cacheMu.Unlock()

	return nil
}

// MustLoad calls Load and panics on error. Intended for use during binary
// startup, before a logger exists to report the failure.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset clears the cache. Exposed for tests that need to reload configuration
// with a different environment between cases.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[reflect.Type]any{}
}
