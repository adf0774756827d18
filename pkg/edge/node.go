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

// Package edge wires the detection source, occupancy engine, sender and
// telemetry into one node. Two schedules interact through the durable
// buffer: the sequential processing path (frame -> engine -> immediate send)
// and the sender's replay loop; the health loop runs beside them. The node
// keeps processing frames regardless of collector connectivity.
package edge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartpark/parkedge/pkg/detect"
	"github.com/smartpark/parkedge/pkg/health"
	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
	"github.com/smartpark/parkedge/pkg/mqtt"
	"github.com/smartpark/parkedge/pkg/occupancy"
	"github.com/smartpark/parkedge/pkg/sender"
)

// Node is the edge node orchestrator.
type Node struct {
	config Config
	source detect.Source
	engine *occupancy.Engine
	sender *sender.Sender
	health *health.Monitor
	bridge *mqtt.Publisher
	logger zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	statsMu sync.Mutex
	stats   models.NodeStats
}

// New assembles a node. The bridge may be nil when no broker is configured.
func New(config Config, source detect.Source, engine *occupancy.Engine, snd *sender.Sender,
	monitor *health.Monitor, bridge *mqtt.Publisher, log logger.Logger) *Node {
	return &Node{
		config: config,
		source: source,
		engine: engine,
		sender: snd,
		health: monitor,
		bridge: bridge,
		logger: log.WithComponent("edge"),
		done:   make(chan struct{}),
	}
}

// Start runs the processing loop until the context is canceled or Stop is
// called. The sender replay loop and the health loop run on their own
// schedules beside it.
func (n *Node) Start(ctx context.Context) error {
	n.health.AddCallback(n.reportHealth)

	n.wg.Add(2)

	go func() {
		defer n.wg.Done()

		if err := n.sender.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			n.logger.Error().Err(err).Msg("Replay loop exited")
		}
	}()

	go func() {
		defer n.wg.Done()

		if err := n.health.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			n.logger.Error().Err(err).Msg("Health loop exited")
		}
	}()

	n.logger.Info().Str("node_id", n.config.NodeID).Msg("Edge node started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.done:
			return nil
		default:
		}

		frame, err := n.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			n.logger.Warn().Err(err).Msg("Frame source error")

			continue
		}

		n.processFrame(ctx, frame)
	}
}

// Stop signals all loops to exit and waits for in-flight work, bounded by
// the delivery timeout.
func (n *Node) Stop(ctx context.Context) error {
	n.closeOnce.Do(func() { close(n.done) })

	if err := n.sender.Stop(ctx); err != nil {
		return err
	}

	if err := n.health.Stop(ctx); err != nil {
		return err
	}

	n.bridge.Close()
	n.wg.Wait()

	n.logger.Info().Msg("Edge node stopped")

	return nil
}

// processFrame runs one frame through the engine and delivers the results.
// Delivery blocks the loop for at most the sender's per-attempt timeout, so
// an unreachable collector cannot stall capture indefinitely.
func (n *Node) processFrame(ctx context.Context, frame detect.Frame) {
	events := n.engine.Process(frame.Detections, frame.Timestamp)

	n.updateStats(frame, len(events))

	if len(events) > 0 {
		n.sender.SendEvents(ctx, events, frame.ModelVersion)

		for _, event := range events {
			n.bridge.PublishSlotState(event)
		}
	}

	summary := n.engine.Summary()
	n.bridge.PublishSummary(summary)
	n.sender.SendSummary(ctx, summary)

	n.sender.SendProcessingLog(ctx, models.ProcessingLogEntry{
		NodeID:          n.config.NodeID,
		FrameID:         frame.FrameID,
		Timestamp:       time.Now().UTC(),
		InferenceTimeMs: frame.InferenceMillis,
		DetectionsCount: len(frame.Detections),
		EventsCount:     len(events),
	})

	n.logger.Debug().
		Str("frame_id", frame.FrameID).
		Int("detections", len(frame.Detections)).
		Int("events", len(events)).
		Float64("inference_ms", frame.InferenceMillis).
		Msg("Processed frame")
}

func (n *Node) updateStats(frame detect.Frame, eventCount int) {
	n.statsMu.Lock()
	defer n.statsMu.Unlock()

	n.stats.TotalFrames++
	n.stats.TotalDetections += int64(len(frame.Detections))
	n.stats.TotalEvents += int64(eventCount)
	n.stats.LastInferenceMs = frame.InferenceMillis

	total := float64(n.stats.TotalFrames)
	n.stats.AvgInferenceMs = (n.stats.AvgInferenceMs*(total-1) + frame.InferenceMillis) / total
}

// Stats returns a copy of the running processing statistics.
func (n *Node) Stats() models.NodeStats {
	n.statsMu.Lock()
	defer n.statsMu.Unlock()

	return n.stats
}

// reportHealth forwards one health sample to the broker and the collector,
// enriched with delivery counters and the live buffer depth.
func (n *Node) reportHealth(metrics models.HealthMetrics) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(n.config.Sender.Timeout))
	defer cancel()

	senderStats := n.sender.Stats(ctx)

	report := models.HealthReport{
		NodeID:        n.config.NodeID,
		HealthMetrics: metrics,
		BufferDepth:   senderStats.BufferDepth,
	}

	n.bridge.PublishHealth(report)
	n.bridge.PublishInferenceStats(n.Stats())
	n.sender.SendHealth(ctx, report)

	n.logger.Info().
		Float64("cpu_percent", metrics.CPUPercent).
		Float64("mem_percent", metrics.MemPercent).
		Int64("buffer_depth", senderStats.BufferDepth).
		Int64("frames", n.Stats().TotalFrames).
		Msg("Health report")
}
