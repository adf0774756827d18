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

// Package occupancy maps per-frame vehicle detections to parking slot states,
// suppressing flicker with hysteresis thresholds and a debounce window.
package occupancy

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
	"github.com/smartpark/parkedge/pkg/registry"
)

const (
	defaultDebounce       = 3 * time.Second
	defaultEnterThreshold = 0.6
	defaultExitThreshold  = 0.4
)

// Config controls the occupancy state machine.
type Config struct {
	SlotsConfigPath string          `json:"slots_config_path"`
	Debounce        models.Duration `json:"debounce"`
	EnterThreshold  float64         `json:"enter_threshold"`
	ExitThreshold   float64         `json:"exit_threshold"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if time.Duration(c.Debounce) == 0 {
		c.Debounce = models.Duration(defaultDebounce)
	}

	if c.EnterThreshold == 0 {
		c.EnterThreshold = defaultEnterThreshold
	}

	if c.ExitThreshold == 0 {
		c.ExitThreshold = defaultExitThreshold
	}

	return nil
}

// Engine is the occupancy state machine for one camera's slot registry.
// It is not safe for concurrent use; the processing loop owns it. Multiple
// independent engines (one per camera, one per test) can coexist because all
// state lives in the injected registry.
type Engine struct {
	registry *registry.Registry
	config   Config
	logger   zerolog.Logger
}

// New creates an engine over the given registry.
func New(reg *registry.Registry, config Config, log logger.Logger) *Engine {
	return &Engine{
		registry: reg,
		config:   config,
		logger:   log.WithComponent("occupancy"),
	}
}

// Process evaluates one frame's worth of detections against every slot and
// returns the state-change events confirmed this call, in slot order.
// Empty or nil detections simply observe every slot as free; Process never
// fails. The frame timestamp drives the debounce window, so replaying a
// recorded frame sequence is deterministic.
func (e *Engine) Process(detections []models.Detection, ts time.Time) []models.StateChangeEvent {
	var events []models.StateChangeEvent

	for _, slot := range e.registry.Slots() {
		contained := false
		rawConfidence := 0.0

		for i := range detections {
			if !pointInPolygon(detections[i].Center, slot.Polygon) {
				continue
			}

			contained = true

			if detections[i].Confidence > rawConfidence {
				rawConfidence = detections[i].Confidence
			}
		}

		observed := models.StateFree
		// Free confidence is the complement of the strongest contained
		// detection, which is 1.0 whenever nothing was contained. This
		// conflates "no car" with "weak evidence of a car" and is kept
		// for collector compatibility.
		confidence := 1.0 - rawConfidence

		if contained {
			observed = models.StateOccupied
			confidence = rawConfidence
		}

		if event := e.updateSlot(slot, observed, confidence, ts); event != nil {
			events = append(events, *event)
		}
	}

	return events
}

// updateSlot applies the hysteresis gate and debounce window to one slot and
// returns the confirmed transition, if any.
func (e *Engine) updateSlot(slot *models.Slot, observed models.SlotState, confidence float64, ts time.Time) *models.StateChangeEvent {
	// Hysteresis gates apply only to confirmed free/occupied states; a slot
	// still unknown accepts its first observation ungated so it resolves
	// quickly after startup.
	switch {
	case slot.CurrentState == models.StateFree && observed == models.StateOccupied:
		if confidence < e.config.EnterThreshold {
			observed = models.StateFree
		}
	case slot.CurrentState == models.StateOccupied && observed == models.StateFree:
		if confidence < e.config.ExitThreshold {
			observed = models.StateOccupied
		}
	}

	if observed == slot.CurrentState {
		// Settled back; abandon any pending transition.
		slot.PendingState = nil
		slot.PendingSince = nil
		slot.Confidence = confidence

		return nil
	}

	if slot.PendingState == nil || *slot.PendingState != observed {
		pending := observed
		since := ts
		slot.PendingState = &pending
		slot.PendingSince = &since
		slot.Confidence = confidence

		return nil
	}

	if ts.Sub(*slot.PendingSince) < time.Duration(e.config.Debounce) {
		return nil
	}

	event := &models.StateChangeEvent{
		SlotID:        slot.SlotID,
		State:         observed,
		PreviousState: slot.CurrentState,
		Confidence:    confidence,
		TimestampUTC:  ts.UTC(),
		DwellSeconds:  int64(ts.Sub(slot.DwellStart).Seconds()),
		ROIVersion:    e.registry.ROIVersion(),
	}

	slot.CurrentState = observed
	slot.LastChange = ts
	slot.DwellStart = ts
	slot.PendingState = nil
	slot.PendingSince = nil

	e.logger.Info().
		Str("slot_id", slot.SlotID).
		Str("previous_state", string(event.PreviousState)).
		Str("state", string(event.State)).
		Float64("confidence", confidence).
		Int64("dwell_s", event.DwellSeconds).
		Msg("Slot state changed")

	return event
}

// Summary returns the aggregate occupancy counts. Read-only.
func (e *Engine) Summary() models.LotSummary {
	summary := models.LotSummary{
		TotalSlots:   e.registry.Len(),
		TimestampUTC: time.Now().UTC(),
		ROIVersion:   e.registry.ROIVersion(),
	}

	for _, slot := range e.registry.Slots() {
		switch slot.CurrentState {
		case models.StateFree:
			summary.FreeCount++
		case models.StateOccupied:
			summary.OccupiedCount++
		case models.StateUnknown:
			summary.UnknownCount++
		}
	}

	return summary
}

// SlotStates returns a per-slot snapshot in configuration order. Read-only.
func (e *Engine) SlotStates() []models.SlotSnapshot {
	snapshots := make([]models.SlotSnapshot, 0, e.registry.Len())

	for _, slot := range e.registry.Slots() {
		snapshots = append(snapshots, models.SlotSnapshot{
			SlotID:     slot.SlotID,
			State:      slot.CurrentState,
			Confidence: slot.Confidence,
			LastChange: slot.LastChange.UTC(),
		})
	}

	return snapshots
}

// ROIVersion exposes the registry's geometry version for event tagging.
func (e *Engine) ROIVersion() string {
	return e.registry.ROIVersion()
}
