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

// Package models defines the shared data types for the parking edge node.
package models

import "time"

// SlotState is the confirmed occupancy state of a parking slot.
type SlotState string

const (
	StateUnknown  SlotState = "unknown"
	StateFree     SlotState = "free"
	StateOccupied SlotState = "occupied"
)

// Point is a 2D point in frame-resolution coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Slot tracks the occupancy state machine for a single parking slot.
// Slots are created once at registry load time and mutated only by the
// occupancy engine; they are never destroyed during the process lifetime.
type Slot struct {
	SlotID       string
	Polygon      []Point
	CurrentState SlotState
	Confidence   float64
	PendingState *SlotState
	PendingSince *time.Time
	LastChange   time.Time
	DwellStart   time.Time
}

// Detection is a single object detection produced by the inference engine.
// Only the center point and confidence are consumed; class and bounding box
// stay upstream.
type Detection struct {
	Center     Point   `json:"center"`
	Confidence float64 `json:"confidence"`
}
