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

// Package sender delivers occupancy events, summaries and health telemetry
// to the collector, buffering undeliverable events for replay. Delivery is
// at-least-once: a crash between acknowledgment and buffer deletion
// duplicates records on restart, and the collector must tolerate that.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultReplayInterval = 30 * time.Second
	defaultBatchSize      = 50

	eventTypeSlot = "slot_event"

	eventsPath        = "/api/v2/events"
	summaryPath       = "/api/v2/summary"
	healthPath        = "/api/v2/health"
	processingLogPath = "/api/v2/processing-log"
)

// Config represents sender configuration.
type Config struct {
	ServerURL      string          `json:"server_url"`
	APIKey         string          `json:"api_key,omitempty"`
	Timeout        models.Duration `json:"timeout"`
	ReplayInterval models.Duration `json:"replay_interval"`
	BatchSize      int             `json:"batch_size"`
	// MaxRetries is the dead-letter cutoff for buffered records; 0 retries
	// forever, matching the historical behavior.
	MaxRetries int `json:"max_retries"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrServerURLRequired
	}

	c.ServerURL = strings.TrimRight(c.ServerURL, "/")

	if time.Duration(c.Timeout) == 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	if time.Duration(c.ReplayInterval) == 0 {
		c.ReplayInterval = models.Duration(defaultReplayInterval)
	}

	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}

	return nil
}

// Sender attempts immediate delivery and hands failures to the durable
// buffer. All counters are atomics: the processing path and the replay loop
// update them concurrently.
type Sender struct {
	config Config
	nodeID string
	store  BufferStore
	client Doer
	clock  Clock
	logger zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	sent      atomic.Int64
	failed    atomic.Int64
	buffered  atomic.Int64
	replayed  atomic.Int64
	dropped   atomic.Int64
	summaries atomic.Int64
}

// New creates a sender. A nil clock defaults to the real clock; a nil client
// defaults to an http.Client bounded by the configured timeout.
func New(config Config, nodeID string, store BufferStore, clock Clock, client Doer, log logger.Logger) *Sender {
	if clock == nil {
		clock = realClock{}
	}

	if client == nil {
		client = &http.Client{Timeout: time.Duration(config.Timeout)}
	}

	return &Sender{
		config: config,
		nodeID: nodeID,
		store:  store,
		client: client,
		clock:  clock,
		logger: log.WithComponent("sender"),
		done:   make(chan struct{}),
	}
}

// post marshals body and POSTs it to path with the API key header. The
// attempt is bounded by the configured timeout regardless of the caller's
// context.
func (s *Sender) post(ctx context.Context, path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.ServerURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.config.APIKey != "" {
		req.Header.Set("X-API-Key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", errServerStatus, resp.StatusCode)
	}

	return nil
}

// SendEvents attempts immediate delivery of state-change events. On failure
// the events are persisted to the buffer and the outcome is reported as
// handled (false), never as an error to the caller.
func (s *Sender) SendEvents(ctx context.Context, events []models.StateChangeEvent, modelVersion string) bool {
	if len(events) == 0 {
		return true
	}

	batch := models.EventBatch{
		NodeID:       s.nodeID,
		Events:       events,
		ModelVersion: modelVersion,
		TimestampUTC: s.clock.Now().UTC(),
	}

	if err := s.post(ctx, eventsPath, batch); err != nil {
		s.logger.Warn().Err(err).Int("events", len(events)).Msg("Failed to send events, buffering")
		s.bufferEvents(ctx, events, modelVersion)

		return false
	}

	s.sent.Add(int64(len(events)))
	s.logger.Debug().Int("events", len(events)).Msg("Sent events to collector")

	return true
}

// bufferEvents persists each event for later replay.
func (s *Sender) bufferEvents(ctx context.Context, events []models.StateChangeEvent, modelVersion string) {
	for i := range events {
		payload, err := json.Marshal(models.BufferedPayload{
			Event:        events[i],
			ModelVersion: modelVersion,
		})
		if err != nil {
			s.failed.Add(1)
			continue
		}

		if err := s.store.Append(ctx, eventTypeSlot, string(payload)); err != nil {
			s.logger.Error().Err(err).Str("slot_id", events[i].SlotID).Msg("Failed to buffer event")
			s.failed.Add(1)

			continue
		}

		s.buffered.Add(1)
	}
}

// SendSummary delivers the lot summary. Summaries are recomputable, so a
// failure is logged but never buffered.
func (s *Sender) SendSummary(ctx context.Context, summary models.LotSummary) bool {
	report := models.SummaryReport{
		NodeID:       s.nodeID,
		Summary:      summary,
		TimestampUTC: s.clock.Now().UTC(),
	}

	if err := s.post(ctx, summaryPath, report); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send summary")
		return false
	}

	s.summaries.Add(1)

	return true
}

// SendHealth delivers one health telemetry sample. Not buffered.
func (s *Sender) SendHealth(ctx context.Context, report models.HealthReport) bool {
	if err := s.post(ctx, healthPath, report); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send health")
		return false
	}

	return true
}

// SendProcessingLog delivers one diagnostic log entry. Best-effort: failures
// are swallowed entirely, no buffering and no retry.
func (s *Sender) SendProcessingLog(ctx context.Context, entry models.ProcessingLogEntry) bool {
	if err := s.post(ctx, processingLogPath, entry); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to send processing log")
		return false
	}

	return true
}

// Stats returns the delivery counters plus the live buffer depth.
func (s *Sender) Stats(ctx context.Context) models.SenderStats {
	depth, err := s.store.Depth(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read buffer depth")
	}

	return models.SenderStats{
		EventsSent:     s.sent.Load(),
		EventsFailed:   s.failed.Load(),
		EventsBuffered: s.buffered.Load(),
		EventsReplayed: s.replayed.Load(),
		EventsDropped:  s.dropped.Load(),
		SummariesSent:  s.summaries.Load(),
		BufferDepth:    depth,
	}
}
