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

package edge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpark/parkedge/pkg/buffer"
	"github.com/smartpark/parkedge/pkg/detect"
	"github.com/smartpark/parkedge/pkg/health"
	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
	"github.com/smartpark/parkedge/pkg/occupancy"
	"github.com/smartpark/parkedge/pkg/registry"
	"github.com/smartpark/parkedge/pkg/sender"
)

// scriptedSource feeds pre-built frames to the node and blocks once the
// script runs out.
type scriptedSource struct {
	frames chan detect.Frame
}

func (s *scriptedSource) Next(ctx context.Context) (detect.Frame, error) {
	select {
	case <-ctx.Done():
		return detect.Frame{}, ctx.Err()
	case frame := <-s.frames:
		return frame, nil
	}
}

// collectorStub records every request path and decodes event batches.
type collectorStub struct {
	mu      sync.Mutex
	paths   []string
	batches []models.EventBatch
}

func (c *collectorStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.paths = append(c.paths, r.URL.Path)

		if r.URL.Path == "/api/v2/events" {
			var batch models.EventBatch
			_ = json.NewDecoder(r.Body).Decode(&batch)
			c.batches = append(c.batches, batch)
		}

		w.WriteHeader(http.StatusOK)
	}
}

func (c *collectorStub) eventBatches() []models.EventBatch {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.EventBatch, len(c.batches))
	copy(out, c.batches)

	return out
}

func (c *collectorStub) pathCount(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0

	for _, p := range c.paths {
		if p == path {
			count++
		}
	}

	return count
}

func writeSlotsConfig(t *testing.T) string {
	t.Helper()

	doc := map[string]interface{}{
		"roi_version": "v3",
		"image_size":  []float64{100, 100},
		"slots": []map[string]interface{}{
			{"slot_id": "A", "poly": [][]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}}},
		},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "slots.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func newTestNode(t *testing.T, serverURL string, source detect.Source) (*Node, *buffer.Store) {
	t.Helper()

	log := logger.NewTestLogger()

	cfg := Config{
		NodeID: "edge-test-01",
		Camera: CameraConfig{Width: 100, Height: 100},
		Occupancy: occupancy.Config{
			SlotsConfigPath: writeSlotsConfig(t),
			Debounce:        models.Duration(50 * time.Millisecond),
		},
		Sender: sender.Config{
			ServerURL:      serverURL,
			Timeout:        models.Duration(2 * time.Second),
			ReplayInterval: models.Duration(time.Hour),
		},
		Health: health.Config{ReportInterval: models.Duration(time.Hour)},
	}
	require.NoError(t, cfg.Validate())

	reg := registry.Load(cfg.Occupancy.SlotsConfigPath, cfg.Camera.Width, cfg.Camera.Height, log)
	require.Equal(t, 1, reg.Len())

	store, err := buffer.New(filepath.Join(t.TempDir(), "buffer.db"), log)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	engine := occupancy.New(reg, cfg.Occupancy, log)
	snd := sender.New(cfg.Sender, cfg.NodeID, store, nil, nil, log)
	monitor := health.New(cfg.Health, log)

	return New(cfg, source, engine, snd, monitor, nil, log), store
}

func occupiedFrame(id string, ts time.Time) detect.Frame {
	return detect.Frame{
		FrameID:   id,
		Timestamp: ts,
		Detections: []models.Detection{
			{Center: models.Point{X: 50, Y: 50}, Confidence: 0.9},
		},
		InferenceMillis: 4,
		ModelVersion:    "yolov8m-edge",
	}
}

func TestNodeProcessesFramesAndDeliversEvents(t *testing.T) {
	stub := &collectorStub{}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	source := &scriptedSource{frames: make(chan detect.Frame, 4)}
	node, _ := newTestNode(t, server.URL, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- node.Start(ctx) }()

	// Two occupied observations a debounce apart confirm the transition on
	// the second frame.
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	source.frames <- occupiedFrame("f1", t0)
	source.frames <- occupiedFrame("f2", t0.Add(100*time.Millisecond))

	require.Eventually(t, func() bool {
		return len(stub.eventBatches()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	batches := stub.eventBatches()
	require.Len(t, batches[0].Events, 1)
	assert.Equal(t, "edge-test-01", batches[0].NodeID)
	assert.Equal(t, "yolov8m-edge", batches[0].ModelVersion)
	assert.Equal(t, "A", batches[0].Events[0].SlotID)
	assert.Equal(t, models.StateOccupied, batches[0].Events[0].State)
	assert.Equal(t, models.StateUnknown, batches[0].Events[0].PreviousState)
	assert.Equal(t, "v3", batches[0].Events[0].ROIVersion)

	// Every frame posts a summary and a processing-log entry.
	require.Eventually(t, func() bool {
		return stub.pathCount("/api/v2/summary") >= 2 &&
			stub.pathCount("/api/v2/processing-log") >= 2
	}, 5*time.Second, 10*time.Millisecond)

	stats := node.Stats()
	assert.Equal(t, int64(2), stats.TotalFrames)
	assert.Equal(t, int64(2), stats.TotalDetections)
	assert.Equal(t, int64(1), stats.TotalEvents)
	assert.Equal(t, float64(4), stats.AvgInferenceMs)
	assert.Equal(t, float64(4), stats.LastInferenceMs)

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop after cancellation")
	}
}

func TestNodeStop(t *testing.T) {
	stub := &collectorStub{}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	source := &scriptedSource{frames: make(chan detect.Frame, 1)}
	node, _ := newTestNode(t, server.URL, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- node.Start(ctx) }()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	source.frames <- occupiedFrame("f1", t0)

	require.Eventually(t, func() bool {
		return node.Stats().TotalFrames == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, node.Stop(context.Background()))

	// The loop is parked in Next; cancellation unblocks it and either exit
	// path is acceptable after Stop.
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop")
	}
}

func TestNodeKeepsProcessingWhenCollectorIsDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close() // connection refused from here on

	source := &scriptedSource{frames: make(chan detect.Frame, 4)}
	node, store := newTestNode(t, url, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- node.Start(ctx) }()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	source.frames <- occupiedFrame("f1", t0)
	source.frames <- occupiedFrame("f2", t0.Add(100*time.Millisecond))

	// The confirmed event lands in the buffer instead of being lost.
	require.Eventually(t, func() bool {
		depth, err := store.Depth(context.Background())
		return err == nil && depth == 1
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, int64(2), node.Stats().TotalFrames)

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop after cancellation")
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := Config{Sender: sender.Config{ServerURL: "http://collector:8000"}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "edge-01", cfg.NodeID)
	assert.Equal(t, float64(1920), cfg.Camera.Width)
	assert.Equal(t, float64(1080), cfg.Camera.Height)
	assert.Equal(t, models.Duration(5*time.Second), cfg.Camera.CaptureInterval)
	assert.Equal(t, "stats_buffer.db", cfg.Buffer.DBPath)
	assert.Equal(t, "fass", cfg.MQTT.Site)
}

func TestConfigValidatePropagatesSenderError(t *testing.T) {
	cfg := Config{}
	assert.ErrorIs(t, cfg.Validate(), sender.ErrServerURLRequired)
}
