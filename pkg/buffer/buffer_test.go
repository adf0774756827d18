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

package buffer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpark/parkedge/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "buffer.db"), logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestAppendAndDepth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	require.NoError(t, store.Append(ctx, "slot_event", `{"event":{}}`))
	require.NoError(t, store.Append(ctx, "slot_event", `{"event":{}}`))

	depth, err = store.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestPeekBatchOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, payload := range []string{"first", "second", "third"} {
		require.NoError(t, store.Append(ctx, "slot_event", payload))
	}

	records, err := store.PeekBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "first", records[0].Payload)
	assert.Equal(t, "second", records[1].Payload)
	assert.Less(t, records[0].ID, records[1].ID)

	// Peeking does not remove.
	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)
}

func TestDeleteRemovesExactlyGivenIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, payload := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, "slot_event", payload))
	}

	records, err := store.PeekBatch(ctx, 2)
	require.NoError(t, err)

	ids := []int64{records[0].ID, records[1].ID}
	require.NoError(t, store.Delete(ctx, ids))

	remaining, err := store.PeekBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "c", remaining[0].Payload)
}

func TestDeleteEmptyIsNoop(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Delete(context.Background(), nil))
}

func TestIncrementRetryAndDeleteExhausted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "slot_event", "a"))
	require.NoError(t, store.Append(ctx, "slot_event", "b"))

	records, err := store.PeekBatch(ctx, 10)
	require.NoError(t, err)

	// Only the first record exhausts its retries.
	for i := 0; i < 3; i++ {
		require.NoError(t, store.IncrementRetry(ctx, []int64{records[0].ID}))
	}

	records, err = store.PeekBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, records[0].RetryCount)
	assert.Equal(t, 0, records[1].RetryCount)

	dropped, err := store.DeleteExhausted(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestDeleteExhaustedDisabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "slot_event", "a"))
	require.NoError(t, store.IncrementRetry(ctx, []int64{1}))

	// maxRetries 0 means retry forever.
	dropped, err := store.DeleteExhausted(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dropped)

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestReopenPreservesRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buffer.db")
	ctx := context.Background()

	store, err := New(path, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "slot_event", "persisted"))
	require.NoError(t, store.Close())

	reopened, err := New(path, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = reopened.Close() })

	records, err := reopened.PeekBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persisted", records[0].Payload)
}
