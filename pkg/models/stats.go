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

// LotSummary is the aggregate occupancy snapshot, recomputable at any time
// with no side effects.
type LotSummary struct {
	FreeCount     int       `json:"free_count"`
	OccupiedCount int       `json:"occupied_count"`
	UnknownCount  int       `json:"unknown_count"`
	TotalSlots    int       `json:"total_slots"`
	TimestampUTC  time.Time `json:"ts_utc"`
	ROIVersion    string    `json:"roi_version"`
}

// SummaryReport is the body posted to the collector's summary endpoint.
type SummaryReport struct {
	NodeID       string     `json:"node_id"`
	Summary      LotSummary `json:"summary"`
	TimestampUTC time.Time  `json:"ts_utc"`
}

// SlotSnapshot is the per-slot read-only view returned by state queries.
type SlotSnapshot struct {
	SlotID     string    `json:"slot_id"`
	State      SlotState `json:"state"`
	Confidence float64   `json:"confidence"`
	LastChange time.Time `json:"last_change"`
}

// SenderStats captures the delivery counters plus the live buffer depth.
type SenderStats struct {
	EventsSent     int64 `json:"events_sent"`
	EventsFailed   int64 `json:"events_failed"`
	EventsBuffered int64 `json:"events_buffered"`
	EventsReplayed int64 `json:"events_replayed"`
	EventsDropped  int64 `json:"events_dropped"`
	SummariesSent  int64 `json:"summaries_sent"`
	BufferDepth    int64 `json:"buffer_depth"`
}

// NodeStats tracks running inference statistics for the processing loop.
type NodeStats struct {
	TotalFrames     int64   `json:"total_frames"`
	TotalDetections int64   `json:"total_detections"`
	TotalEvents     int64   `json:"total_events"`
	AvgInferenceMs  float64 `json:"avg_inference_ms"`
	LastInferenceMs float64 `json:"last_inference_ms"`
}
