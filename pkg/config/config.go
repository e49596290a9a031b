// Package config loads configuration structs from YAML files and
// environment variables using `env`, `yaml`, `default` and `required`
// struct tags. Environment variables take precedence over file values,
// which take precedence over defaults.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator allows config structs to implement custom validation logic.
// When implemented, validation runs automatically after loading.
type Validator interface {
	Validate() error
}

// GetConfig loads configuration from a YAML file first, then overlays
// environment variables. An empty filepath skips the file stage. When
// allowFileErrors is true, file read/parse errors fall back to
// environment variables only.
func GetConfig[T any](dest *T, filepath string, allowFileErrors bool) error {
	if filepath != "" {
		data, err := os.ReadFile(filepath)
		if err != nil {
			if !allowFileErrors {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, dest); err != nil {
			if !allowFileErrors {
				return fmt.Errorf("failed to unmarshal config YAML: %w", err)
			}
		}
	}

	return GetConfigFromEnvVars(dest)
}

// GetConfigFromEnvVars loads configuration from environment variables,
// then applies defaults and checks required fields.
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()

	fromEnv, err := applyEnv(val, val.Type())
	if err != nil {
		return err
	}

	if err := applyDefaults(val, val.Type(), fromEnv); err != nil {
		var zero T
		*dest = zero
		return err
	}

	if validator, ok := any(*dest).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	return nil
}

// applyEnv walks the struct recursively and sets fields from their env
// tags. It returns the set of fields that were populated so defaults
// are not applied on top of explicit zero values.
func applyEnv(val reflect.Value, t reflect.Type) (map[string]bool, error) {
	set := make(map[string]bool)

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			nested, err := applyEnv(field, fieldType.Type)
			if err != nil {
				return nil, err
			}
			for k := range nested {
				set[k] = true
			}
			continue
		}

		tag := fieldType.Tag.Get("env")
		if tag == "" {
			continue
		}
		envVal := os.Getenv(tag)
		if envVal == "" {
			continue
		}

		if err := setField(field, envVal); err != nil {
			return nil, fmt.Errorf("env %s: %w", tag, err)
		}
		set[t.Name()+"."+fieldType.Name] = true
	}

	return set, nil
}

// applyDefaults fills zero fields from default tags and collects errors
// for required fields that remain unset.
func applyDefaults(val reflect.Value, t reflect.Type, fromEnv map[string]bool) error {
	var result error

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyDefaults(field, fieldType.Type, fromEnv); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		defaultTag := fieldType.Tag.Get("default")
		required := strings.EqualFold(fieldType.Tag.Get("required"), "true") && defaultTag == ""

		if field.IsZero() && required {
			result = multierror.Append(result, fmt.Errorf(
				"required field env:%s / yaml:%s is missing",
				fieldType.Tag.Get("env"), fieldType.Tag.Get("yaml")))
			continue
		}

		key := t.Name() + "." + fieldType.Name
		if field.IsZero() && defaultTag != "" && !fromEnv[key] {
			if err := setField(field, defaultTag); err != nil {
				result = multierror.Append(result, fmt.Errorf("default for %s: %w", fieldType.Name, err))
			}
		}
	}

	return result
}

func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to parse %q as duration: %w", raw, err)
		}
		field.SetInt(int64(duration))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		intVal, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse %q as int: %w", raw, err)
		}
		field.SetInt(intVal)
	case reflect.Float64:
		floatVal, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("failed to parse %q as float: %w", raw, err)
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to parse %q as bool: %w", raw, err)
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		values := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, v := range values {
			slice.Index(i).SetString(strings.TrimSpace(v))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}

	return nil
}
