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

package detect

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/smartpark/parkedge/pkg/models"
)

const (
	simModelVersion  = "sim-v1"
	simToggleChance  = 0.05
	simMinConfidence = 0.70
)

// SimSource fabricates detections for a fixed set of spot centers, toggling
// occupancy slowly enough that the debounce window can confirm transitions.
// It exists for demos and soak tests; it is not a detector.
type SimSource struct {
	interval time.Duration
	spots    []models.Point
	occupied []bool
	rng      *rand.Rand
}

// NewSimSource creates a simulator emitting one frame per interval.
func NewSimSource(interval time.Duration, spots []models.Point, seed int64) *SimSource {
	return &SimSource{
		interval: interval,
		spots:    spots,
		occupied: make([]bool, len(spots)),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Next blocks for the configured interval, then returns a fabricated frame.
func (s *SimSource) Next(ctx context.Context) (Frame, error) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-timer.C:
	}

	var detections []models.Detection

	for i, spot := range s.spots {
		if s.rng.Float64() < simToggleChance {
			s.occupied[i] = !s.occupied[i]
		}

		if !s.occupied[i] {
			continue
		}

		detections = append(detections, models.Detection{
			Center: models.Point{
				X: spot.X + s.rng.Float64()*10 - 5,
				Y: spot.Y + s.rng.Float64()*10 - 5,
			},
			Confidence: simMinConfidence + s.rng.Float64()*(1-simMinConfidence),
		})
	}

	return Frame{
		FrameID:         uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		Detections:      detections,
		InferenceMillis: 1 + s.rng.Float64()*4,
		ModelVersion:    simModelVersion,
	}, nil
}
