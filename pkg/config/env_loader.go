/*
 * Copyright 2025 SmartPark Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

var (
	ErrDstMustBeNonNilPointer   = errors.New("dst must be a non-nil pointer")
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")

	errUnsupportedFieldType = errors.New("unsupported field type")
)

var jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

// EnvLoader overlays environment variables onto an already-loaded config.
// Variable names derive from the json tags, nested fields joined with
// underscores: with prefix "SMARTPARK_", SMARTPARK_SENDER_SERVER_URL maps to
// cfg.Sender.ServerURL. Fields without a matching variable are left alone.
type EnvLoader struct {
	prefix string
}

// NewEnvLoader creates an overlay loader for the given variable prefix.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix}
}

// Load implements Loader. The path argument is unused; the source is the
// process environment.
func (e *EnvLoader) Load(_ context.Context, _ string, dst interface{}) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	return e.overlayStruct(v, e.prefix)
}

func (e *EnvLoader) overlayStruct(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)

		if !field.CanSet() {
			continue
		}

		jsonTag := t.Field(i).Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		name := strings.Split(jsonTag, ",")[0]
		envName := prefix + strings.ToUpper(name)

		if err := e.overlayField(field, envName); err != nil {
			return err
		}
	}

	return nil
}

func (e *EnvLoader) overlayField(field reflect.Value, envName string) error {
	// Nested configs recurse with the field name as an extended prefix.
	if field.Kind() == reflect.Struct && !field.Addr().Type().Implements(jsonUnmarshalerType) {
		return e.overlayStruct(field, envName+"_")
	}

	if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
		if !hasEnvWithPrefix(envName + "_") {
			return nil
		}

		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return e.overlayStruct(field.Elem(), envName+"_")
	}

	value, ok := os.LookupEnv(envName)
	if !ok {
		return nil
	}

	return setField(field, envName, value)
}

func setField(field reflect.Value, envName, value string) error {
	// Types with their own JSON form (models.Duration) take the value as a
	// JSON string.
	if field.Addr().Type().Implements(jsonUnmarshalerType) {
		if err := json.Unmarshal([]byte(strconv.Quote(value)), field.Addr().Interface()); err != nil {
			return fmt.Errorf("invalid value for %s: %w", envName, err)
		}

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %w", envName, err)
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %w", envName, err)
		}

		field.SetInt(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %w", envName, err)
		}

		field.SetFloat(f)
	default:
		return fmt.Errorf("%w: %s for %s", errUnsupportedFieldType, field.Kind(), envName)
	}

	return nil
}

// hasEnvWithPrefix reports whether any environment variable starts with the
// given prefix, so optional pointer sections are only allocated when set.
func hasEnvWithPrefix(prefix string) bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}

	return false
}
