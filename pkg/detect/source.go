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

// Package detect defines the boundary to the capture and inference pipeline.
// The node consumes the detector as a black box producing detections per
// frame; camera acquisition and the model itself live outside this repo.
package detect

import (
	"context"
	"time"

	"github.com/smartpark/parkedge/pkg/models"
)

// Frame is one processed capture: the detections the model produced for a
// single frame plus its metadata.
type Frame struct {
	FrameID         string
	Timestamp       time.Time
	Detections      []models.Detection
	InferenceMillis float64
	ModelVersion    string
}

// Source yields one frame per call, blocking until the next frame is
// available or the context is canceled.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}
