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

// Package config handles loading and validating node configuration.
package config

import (
	"context"
	"fmt"

	"github.com/smartpark/parkedge/pkg/logger"
)

// Validator is implemented by configuration structs that can check and
// default their own fields.
type Validator interface {
	Validate() error
}

// Loader loads configuration from a source into a destination struct.
type Loader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "SMARTPARK_"

// Config holds the configuration loading dependencies.
type Config struct {
	loader Loader
	env    Loader
	logger logger.Logger
}

// NewConfig initializes a Config with a file loader and an environment
// overlay. A nil logger falls back to a no-op test logger so config loading
// never panics on logging.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		loader: &FileLoader{},
		env:    NewEnvLoader(EnvPrefix),
		logger: log,
	}
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads a configuration from path, overlays environment
// variable overrides, and validates the result.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if err := c.loader.Load(ctx, path, cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := c.env.Load(ctx, path, cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return ValidateConfig(cfg)
}
