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

// Package health periodically samples node system metrics and fans them out
// to registered callbacks. Collection failures are logged, never fatal: the
// node keeps processing frames regardless of what telemetry can be gathered.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"

	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
)

const (
	defaultReportInterval = 15 * time.Second
	bytesPerMB            = 1024 * 1024
)

// Config controls the health reporting schedule.
type Config struct {
	ReportInterval models.Duration `json:"report_interval"`
	DiskPath       string          `json:"disk_path"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if time.Duration(c.ReportInterval) == 0 {
		c.ReportInterval = models.Duration(defaultReportInterval)
	}

	if c.DiskPath == "" {
		c.DiskPath = "/"
	}

	return nil
}

// Callback receives each collected sample.
type Callback func(models.HealthMetrics)

// Monitor samples system metrics on a fixed interval.
type Monitor struct {
	config    Config
	logger    zerolog.Logger
	startTime time.Time
	callbacks []Callback

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a monitor. Callbacks must be registered before Start.
func New(config Config, log logger.Logger) *Monitor {
	return &Monitor{
		config:    config,
		logger:    log.WithComponent("health"),
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// AddCallback registers a consumer for collected samples.
func (m *Monitor) AddCallback(cb Callback) {
	m.callbacks = append(m.callbacks, cb)
}

// Collect gathers one sample. Individual probe failures leave their fields
// zero and are logged at warn.
func (m *Monitor) Collect(ctx context.Context) models.HealthMetrics {
	metrics := models.HealthMetrics{
		TimestampUTC:  time.Now().UTC(),
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to sample cpu usage")
	} else if len(percents) > 0 {
		metrics.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to sample memory")
	} else {
		metrics.MemTotalMB = vm.Total / bytesPerMB
		metrics.MemUsedMB = vm.Used / bytesPerMB
		metrics.MemPercent = vm.UsedPercent
	}

	if usage, err := disk.UsageWithContext(ctx, m.config.DiskPath); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to sample disk usage")
	} else {
		metrics.DiskPercent = usage.UsedPercent
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to sample load average")
	} else {
		metrics.LoadAvg1m = avg.Load1
	}

	if counters, err := gopsnet.IOCountersWithContext(ctx, false); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to sample network counters")
	} else if len(counters) > 0 {
		metrics.NetBytesSent = counters[0].BytesSent
		metrics.NetBytesRecv = counters[0].BytesRecv
	}

	return metrics
}

// Start runs the sampling loop until the context is canceled or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) error {
	interval := time.Duration(m.config.ReportInterval)
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	m.logger.Info().Dur("interval", interval).Msg("Health monitor started")

	m.wg.Add(1)
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case <-ticker.C:
			metrics := m.Collect(ctx)

			for _, cb := range m.callbacks {
				cb(metrics)
			}
		}
	}
}

// Stop signals the loop to exit and waits for it.
func (m *Monitor) Stop(_ context.Context) error {
	m.closeOnce.Do(func() { close(m.done) })
	m.wg.Wait()

	m.logger.Info().Msg("Health monitor stopped")

	return nil
}
