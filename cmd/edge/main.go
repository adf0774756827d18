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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartpark/parkedge/pkg/buffer"
	"github.com/smartpark/parkedge/pkg/config"
	"github.com/smartpark/parkedge/pkg/detect"
	"github.com/smartpark/parkedge/pkg/edge"
	"github.com/smartpark/parkedge/pkg/health"
	"github.com/smartpark/parkedge/pkg/lifecycle"
	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
	"github.com/smartpark/parkedge/pkg/mqtt"
	"github.com/smartpark/parkedge/pkg/occupancy"
	"github.com/smartpark/parkedge/pkg/registry"
	"github.com/smartpark/parkedge/pkg/sender"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/parkedge/edge.json", "Path to edge node config file")
	flag.Parse()

	// Optional .env for broker credentials and the API key.
	_ = godotenv.Load()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg edge.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	edgeLogger, err := lifecycle.CreateComponentLogger("edge", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg := registry.Load(cfg.Occupancy.SlotsConfigPath, cfg.Camera.Width, cfg.Camera.Height, edgeLogger)
	if reg.Len() == 0 {
		edgeLogger.Warn().Str("path", cfg.Occupancy.SlotsConfigPath).
			Msg("No slots loaded, node will report an empty lot")
	}

	store, err := buffer.New(cfg.Buffer.DBPath, edgeLogger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snd := sender.New(cfg.Sender, cfg.NodeID, store, nil, nil, edgeLogger)
	engine := occupancy.New(reg, cfg.Occupancy, edgeLogger)
	monitor := health.New(cfg.Health, edgeLogger)

	var bridge *mqtt.Publisher

	if cfg.MQTT.Enabled() {
		bridge, err = mqtt.NewPublisher(cfg.MQTT, cfg.NodeID, edgeLogger)
		if err != nil {
			// The HTTP sender is the authoritative path; run without the bridge.
			edgeLogger.Warn().Err(err).Msg("MQTT bridge unavailable, continuing without it")
		}
	}

	source := detect.NewSimSource(
		time.Duration(cfg.Camera.CaptureInterval),
		slotCenters(reg),
		time.Now().UnixNano(),
	)

	node := edge.New(cfg, source, engine, snd, monitor, bridge, edgeLogger)

	return lifecycle.Run(ctx, node, edgeLogger)
}

// slotCenters returns one simulated parking spot per registered slot, at the
// polygon centroid.
func slotCenters(reg *registry.Registry) []models.Point {
	centers := make([]models.Point, 0, reg.Len())

	for _, slot := range reg.Slots() {
		var c models.Point

		for _, p := range slot.Polygon {
			c.X += p.X
			c.Y += p.Y
		}

		n := float64(len(slot.Polygon))
		centers = append(centers, models.Point{X: c.X / n, Y: c.Y / n})
	}

	return centers
}
