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

package sender

import (
	"context"
	"encoding/json"
	"time"

	"github.com/smartpark/parkedge/pkg/models"
)

const replayModelVersion = "replay"

// Start runs the replay loop until the context is canceled or Stop is
// called. It runs on its own schedule, concurrently with the processing
// path; the buffer serializes access between the two.
func (s *Sender) Start(ctx context.Context) error {
	interval := time.Duration(s.config.ReplayInterval)
	ticker := s.clock.Ticker(interval)

	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("Starting replay loop")

	s.wg.Add(1)
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.Chan():
			if _, err := s.ReplayBuffered(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Replay pass failed")
			}
		}
	}
}

// Stop signals the replay loop to exit and waits for any in-flight delivery
// attempt to finish (bounded by the attempt timeout).
func (s *Sender) Stop(_ context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()

	return nil
}

// ReplayBuffered performs one replay pass: read up to batch_size oldest
// records, attempt one delivery tagged as a replay, and delete exactly the
// delivered records on success. Failed passes leave the buffer untouched
// except for retry bookkeeping; the next pass retries from the same oldest
// point, with no backoff at this layer.
func (s *Sender) ReplayBuffered(ctx context.Context) (int, error) {
	records, err := s.store.PeekBatch(ctx, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	if len(records) == 0 {
		return 0, nil
	}

	events := make([]models.StateChangeEvent, 0, len(records))
	validIDs := make([]int64, 0, len(records))

	var corruptIDs []int64

	for i := range records {
		var payload models.BufferedPayload

		if err := json.Unmarshal([]byte(records[i].Payload), &payload); err != nil {
			// Undecodable payloads are dropped rather than retried forever.
			// This is a data-loss path.
			s.logger.Error().Err(err).Int64("id", records[i].ID).Msg("Dropping corrupt buffered record")
			corruptIDs = append(corruptIDs, records[i].ID)

			continue
		}

		events = append(events, payload.Event)
		validIDs = append(validIDs, records[i].ID)
	}

	if len(corruptIDs) > 0 {
		if err := s.store.Delete(ctx, corruptIDs); err != nil {
			return 0, err
		}

		s.dropped.Add(int64(len(corruptIDs)))
	}

	if len(events) == 0 {
		return 0, nil
	}

	batch := models.EventBatch{
		NodeID:       s.nodeID,
		Events:       events,
		ModelVersion: replayModelVersion,
		TimestampUTC: s.clock.Now().UTC(),
		IsReplay:     true,
	}

	if err := s.post(ctx, eventsPath, batch); err != nil {
		s.logger.Warn().Err(err).Int("events", len(events)).Msg("Failed to replay buffered events")

		if err := s.store.IncrementRetry(ctx, validIDs); err != nil {
			return 0, err
		}

		dropped, err := s.store.DeleteExhausted(ctx, s.config.MaxRetries)
		if err != nil {
			return 0, err
		}

		s.dropped.Add(dropped)

		return 0, nil
	}

	// Delete exactly the records that made up the acknowledged batch.
	if err := s.store.Delete(ctx, validIDs); err != nil {
		return 0, err
	}

	s.replayed.Add(int64(len(events)))
	s.logger.Info().Int("events", len(events)).Msg("Replayed buffered events")

	return len(events), nil
}
