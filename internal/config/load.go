package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

const envPrefix = "LOANLOUNGE"

// Load reads config.yaml from the first of the given directories that has
// one, applies struct tag defaults and finally LOANLOUNGE_* environment
// overrides. A missing file is not an error; defaults still apply.
func Load(cfg *Config, dirs ...string) error {
	raw := map[string]any{}

	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(os.ExpandEnv(dir), "config.yaml"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		break
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  cfg,
		TagName: "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("creating config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	applyDefaults(reflect.ValueOf(cfg).Elem())
	applyEnvOverrides(reflect.ValueOf(cfg).Elem(), envPrefix)

	return nil
}

// applyDefaults fills zero-valued fields from their `default:` struct tag.
func applyDefaults(v reflect.Value) {
	t := v.Type()
	for i := range t.NumField() {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			applyDefaults(field)
			continue
		}
		def, ok := t.Field(i).Tag.Lookup("default")
		if !ok || !field.IsZero() {
			continue
		}
		setFromString(field, def)
	}
}

// applyEnvOverrides overrides fields from environment variables named after
// the yaml path, e.g. LOANLOUNGE_HTTP_ADDRESS or LOANLOUNGE_BACKEND_APIKEY.
func applyEnvOverrides(v reflect.Value, prefix string) {
	t := v.Type()
	for i := range t.NumField() {
		field := v.Field(i)
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name == "" {
			name = t.Field(i).Name
		}
		key := prefix + "_" + strings.ToUpper(name)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			applyEnvOverrides(field, key)
			continue
		}
		if val, ok := os.LookupEnv(key); ok {
			setFromString(field, val)
		}
	}
}

func setFromString(field reflect.Value, raw string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(raw); err == nil {
				field.SetInt(int64(d))
			}
			return
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			field.SetInt(n)
		}
	}
}
