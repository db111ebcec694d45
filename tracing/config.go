package tracing

import (
	"os"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	BackendOtel   = "otel"
	BackendSentry = "sentry"
	BackendNone   = "none"

	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"

	// EnvPrefix prefixes the environment variables read by ConfigFromEnv.
	EnvPrefix = "SPANWRAP_"
)

var ErrInvalidConfig = errors.New("invalid tracing configuration")

// Config selects and configures the tracing backend.
type Config struct {
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	Backend     string `mapstructure:"backend" yaml:"backend"`

	// OpenTelemetry
	Exporter   string  `mapstructure:"exporter" yaml:"exporter"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`

	// Sentry
	SentryDSN   string `mapstructure:"sentry_dsn" yaml:"sentry_dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
}

// DefaultConfig traces everything to stdout.
func DefaultConfig() Config {
	return Config{
		ServiceName: "spanwrap",
		Backend:     BackendOtel,
		Exporter:    ExporterStdout,
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOtel, BackendSentry, BackendNone:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown backend %q", c.Backend)
	}

	if c.Backend == BackendOtel {
		switch c.Exporter {
		case ExporterStdout, ExporterOTLP, ExporterNone:
		default:
			return errors.Wrapf(ErrInvalidConfig, "unknown exporter %q", c.Exporter)
		}
		if c.Exporter == ExporterOTLP && c.Endpoint == "" {
			return errors.Wrap(ErrInvalidConfig, "otlp exporter requires an endpoint")
		}
	}

	if c.SampleRate < 0 || c.SampleRate > 1 {
		return errors.Wrapf(ErrInvalidConfig, "sample rate %v is outside [0, 1]", c.SampleRate)
	}
	return nil
}

// Merge decodes raw settings over c. Values may be strings, as read from the
// environment.
func (c Config) Merge(raw map[string]any) (Config, error) {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return c, errors.Wrap(err, "failed to create config decoder")
	}

	if err := decoder.Decode(raw); err != nil {
		return c, errors.Wrap(err, "failed to decode tracing config")
	}
	return c, nil
}

// LoadConfigFile reads a YAML file and merges it over base.
func LoadConfigFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, errors.Wrapf(err, "failed to read config file %s", path)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return base, errors.Wrapf(err, "failed to parse config file %s", path)
	}

	return base.Merge(raw)
}

// configKeys are the settings Config accepts, by mapstructure tag.
var configKeys = func() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeFor[Config]()
	for i := range t.NumField() {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" {
			keys[tag] = struct{}{}
		}
	}
	return keys
}()

// ConfigFromEnv merges SPANWRAP_* variables over base, along with the
// conventional SENTRY_DSN and OTEL_EXPORTER_OTLP_ENDPOINT. Variables that name
// no setting are ignored.
func ConfigFromEnv(base Config, environ []string) (Config, error) {
	raw := map[string]any{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		switch {
		case key == "SENTRY_DSN":
			raw["sentry_dsn"] = value
		case key == "OTEL_EXPORTER_OTLP_ENDPOINT":
			raw["endpoint"] = value
		case strings.HasPrefix(key, EnvPrefix):
			name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			if _, ok := configKeys[name]; ok {
				raw[name] = value
			}
		}
	}

	// SPANWRAP_ENDPOINT wins over OTEL_EXPORTER_OTLP_ENDPOINT.
	for _, kv := range environ {
		if value, ok := strings.CutPrefix(kv, EnvPrefix+"ENDPOINT="); ok {
			raw["endpoint"] = value
		}
	}

	return base.Merge(raw)
}

// LoadConfig resolves the configuration from defaults, the optional YAML
// file at path, then the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		var err error
		cfg, err = LoadConfigFile(cfg, path)
		if err != nil {
			return cfg, err
		}
	}

	cfg, err := ConfigFromEnv(cfg, os.Environ())
	if err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}
