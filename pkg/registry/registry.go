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

// Package registry loads versioned slot geometry and rescales it to the
// active capture resolution.
package registry

import (
	"encoding/json"
	"os"
	"time"

	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
)

const defaultROIVersion = "v1"

type slotDef struct {
	SlotID string      `json:"slot_id"`
	Poly   [][]float64 `json:"poly"`
}

type slotDocument struct {
	ROIVersion string    `json:"roi_version"`
	ImageSize  []float64 `json:"image_size"`
	Slots      []slotDef `json:"slots"`
}

// Registry is the ordered set of slots loaded from one geometry document.
// Slots are created here once and mutated only by the occupancy engine.
type Registry struct {
	slots      []*models.Slot
	index      map[string]*models.Slot
	roiVersion string
	logger     logger.Logger
}

// Load reads the slot geometry document at configPath and scales every
// polygon to the target capture resolution. Loading fails softly: a missing
// or malformed file yields an empty registry with a warning, never an error.
// Whether zero slots is fatal is the caller's call.
func Load(configPath string, targetWidth, targetHeight float64, log logger.Logger) *Registry {
	r := &Registry{
		index:      make(map[string]*models.Slot),
		roiVersion: defaultROIVersion,
		logger:     log,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("Slots config not found, using empty slots")
		return r
	}

	var doc slotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("Failed to parse slots config")
		return r
	}

	if doc.ROIVersion != "" {
		r.roiVersion = doc.ROIVersion
	}

	// Polygons are authored against the config's image size; scale each axis
	// independently to the capture resolution.
	scaleX, scaleY := 1.0, 1.0
	if len(doc.ImageSize) == 2 && doc.ImageSize[0] > 0 && doc.ImageSize[1] > 0 {
		scaleX = targetWidth / doc.ImageSize[0]
		scaleY = targetHeight / doc.ImageSize[1]
	}

	log.Info().
		Floats64("image_size", doc.ImageSize).
		Float64("scale_x", scaleX).
		Float64("scale_y", scaleY).
		Msg("Scaling slot polygons to capture resolution")

	now := time.Now()

	for _, def := range doc.Slots {
		polygon := make([]models.Point, 0, len(def.Poly))

		for _, p := range def.Poly {
			if len(p) != 2 {
				continue
			}

			polygon = append(polygon, models.Point{X: p[0] * scaleX, Y: p[1] * scaleY})
		}

		if len(polygon) < 3 {
			log.Warn().Str("slot_id", def.SlotID).Int("points", len(polygon)).
				Msg("Skipping slot with degenerate polygon")
			continue
		}

		slot := &models.Slot{
			SlotID:       def.SlotID,
			Polygon:      polygon,
			CurrentState: models.StateUnknown,
			LastChange:   now,
			DwellStart:   now,
		}

		if existing, ok := r.index[def.SlotID]; ok {
			// Duplicate ids are a configuration error; the later entry wins.
			log.Warn().Str("slot_id", def.SlotID).Msg("Duplicate slot id in config, overwriting earlier entry")

			*existing = *slot

			continue
		}

		r.index[def.SlotID] = slot
		r.slots = append(r.slots, slot)
	}

	log.Info().Int("slots", len(r.slots)).Str("roi_version", r.roiVersion).
		Str("path", configPath).Msg("Loaded slot registry")

	return r
}

// Slots returns the slots in configuration order. Callers must not reorder
// the returned slice.
func (r *Registry) Slots() []*models.Slot {
	return r.slots
}

// Get returns the slot with the given id, or nil.
func (r *Registry) Get(slotID string) *models.Slot {
	return r.index[slotID]
}

// Len returns the number of loaded slots.
func (r *Registry) Len() int {
	return len(r.slots)
}

// ROIVersion identifies the geometry document the slots were loaded from.
func (r *Registry) ROIVersion() string {
	return r.roiVersion
}
