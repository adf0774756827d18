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

package models

import "time"

// StateChangeEvent records one confirmed slot transition. Immutable once
// created. Field names follow the collector's wire contract.
type StateChangeEvent struct {
	SlotID        string    `json:"slot_id"`
	State         SlotState `json:"state"`
	PreviousState SlotState `json:"previous_state"`
	Confidence    float64   `json:"confidence"`
	TimestampUTC  time.Time `json:"ts_utc"`
	DwellSeconds  int64     `json:"dwell_s"`
	ROIVersion    string    `json:"roi_version"`
}

// EventBatch is the body posted to the collector's events endpoint.
type EventBatch struct {
	NodeID       string             `json:"node_id"`
	Events       []StateChangeEvent `json:"events"`
	ModelVersion string             `json:"model_version"`
	TimestampUTC time.Time          `json:"ts_utc"`
	IsReplay     bool               `json:"is_replay,omitempty"`
}

// BufferedPayload is the JSON stored per buffered record: one event plus the
// model version it was produced under.
type BufferedPayload struct {
	Event        StateChangeEvent `json:"event"`
	ModelVersion string           `json:"model_version"`
}

// BufferedRecord is one row of the durable delivery buffer. A record exists
// if and only if it has not yet been acknowledged by the collector.
type BufferedRecord struct {
	ID         int64
	EventType  string
	Payload    string
	Timestamp  time.Time
	RetryCount int
	CreatedAt  time.Time
}

// ProcessingLogEntry is the best-effort per-frame diagnostic record. Delivery
// failures are swallowed, never buffered.
type ProcessingLogEntry struct {
	NodeID          string    `json:"node_id"`
	FrameID         string    `json:"frame_id"`
	Timestamp       time.Time `json:"timestamp"`
	InferenceTimeMs float64   `json:"inference_time_ms"`
	DetectionsCount int       `json:"detections_count"`
	EventsCount     int       `json:"events_count"`
}
