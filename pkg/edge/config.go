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

package edge

import (
	"time"

	"github.com/smartpark/parkedge/pkg/health"
	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
	"github.com/smartpark/parkedge/pkg/mqtt"
	"github.com/smartpark/parkedge/pkg/occupancy"
	"github.com/smartpark/parkedge/pkg/sender"
)

const (
	defaultNodeID          = "edge-01"
	defaultCaptureWidth    = 1920
	defaultCaptureHeight   = 1080
	defaultCaptureInterval = 5 * time.Second
	defaultBufferPath      = "stats_buffer.db"
)

// CameraConfig describes the active capture resolution and cadence. The
// resolution drives polygon scaling at registry load time.
type CameraConfig struct {
	Width           float64         `json:"width"`
	Height          float64         `json:"height"`
	CaptureInterval models.Duration `json:"capture_interval"`
}

// BufferConfig locates the durable delivery buffer.
type BufferConfig struct {
	DBPath string `json:"db_path"`
}

// Config represents the full edge node configuration.
type Config struct {
	NodeID    string           `json:"node_id"`
	Camera    CameraConfig     `json:"camera"`
	Occupancy occupancy.Config `json:"occupancy"`
	Sender    sender.Config    `json:"sender"`
	Health    health.Config    `json:"health"`
	MQTT      mqtt.Config      `json:"mqtt"`
	Buffer    BufferConfig     `json:"buffer"`
	Logging   *logger.Config   `json:"logging,omitempty"`
}

// Validate implements config.Validator, defaulting every subsection.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		c.NodeID = defaultNodeID
	}

	if c.Camera.Width == 0 {
		c.Camera.Width = defaultCaptureWidth
	}

	if c.Camera.Height == 0 {
		c.Camera.Height = defaultCaptureHeight
	}

	if time.Duration(c.Camera.CaptureInterval) == 0 {
		c.Camera.CaptureInterval = models.Duration(defaultCaptureInterval)
	}

	if c.Buffer.DBPath == "" {
		c.Buffer.DBPath = defaultBufferPath
	}

	if err := c.Occupancy.Validate(); err != nil {
		return err
	}

	if err := c.Sender.Validate(); err != nil {
		return err
	}

	if err := c.Health.Validate(); err != nil {
		return err
	}

	return c.MQTT.Validate()
}
