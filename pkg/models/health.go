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

// HealthMetrics is one node telemetry sample.
type HealthMetrics struct {
	TimestampUTC  time.Time `json:"ts_utc"`
	UptimeSeconds int64     `json:"uptime_s"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemTotalMB    uint64    `json:"mem_total_mb"`
	MemUsedMB     uint64    `json:"mem_used_mb"`
	MemPercent    float64   `json:"mem_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	LoadAvg1m     float64   `json:"load_avg_1m"`
	NetBytesSent  uint64    `json:"net_bytes_sent"`
	NetBytesRecv  uint64    `json:"net_bytes_recv"`
}

// HealthReport is the body posted to the collector's health endpoint.
type HealthReport struct {
	NodeID      string `json:"node_id"`
	HealthMetrics
	BufferDepth int64 `json:"buffer_depth"`
}
