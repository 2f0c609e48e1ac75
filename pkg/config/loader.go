package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadOption configures a single Load call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	files    []string
	prefix   string
	environ  map[string]string
	optional bool
}

// WithEnvFiles reads additional dotenv files. Values already present in the
// process environment take precedence over file values.
func WithEnvFiles(paths ...string) LoadOption {
	return func(o *loadOptions) {
		o.files = append(o.files, paths...)
	}
}

// WithPrefix only considers variables starting with prefix, stripping it before matching tags.
func WithPrefix(prefix string) LoadOption {
	return func(o *loadOptions) { o.prefix = prefix }
}

// WithEnviron replaces the process environment as the variable source.
func WithEnviron(vars map[string]string) LoadOption {
	return func(o *loadOptions) {
		if vars != nil {
			o.environ = vars
		}
	}
}

// Load parses environment variables into a new T based on `env` struct tags.
// A .env file in the working directory is read when present. Nothing is cached:
// each call returns an independent value, so callers pass the result explicitly.
//
// Example:
//
//	type SchedulerConfig struct {
//		BillingInterval time.Duration `env:"BILLING_INTERVAL" envDefault:"1h"`
//	}
//
//	cfg, err := config.Load[SchedulerConfig]()
func Load[T any](opts ...LoadOption) (T, error) {
	o := &loadOptions{files: []string{".env"}, optional: true}
	for _, opt := range opts {
		opt(o)
	}

	var zero T
	vars, err := o.resolve()
	if err != nil {
		return zero, err
	}

	v, err := env.ParseAsWithOptions[T](env.Options{
		Environment: vars,
		Prefix:      o.prefix,
	})
	if err != nil {
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](opts ...LoadOption) T {
	v, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return v
}

func (o *loadOptions) resolve() (map[string]string, error) {
	vars := o.environ
	if vars == nil {
		vars = make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				vars[k] = v
			}
		}
	} else {
		vars = copyMap(vars)
	}

	for i, path := range o.files {
		fileVars, err := godotenv.Read(path)
		if err != nil {
			// the implicit .env is optional; explicit files are not
			if i == 0 && o.optional && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, errors.Join(ErrReadingEnvFile, fmt.Errorf("%s: %w", path, err))
		}
		for k, v := range fileVars {
			if _, set := vars[k]; !set {
				vars[k] = v
			}
		}
	}
	return vars, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
