package sender

import (
	"context"
	"net/http"
	"time"

	"github.com/smartpark/parkedge/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// BufferStore is the durable buffer consumed by the replay loop and fed by
// failed immediate deliveries.
type BufferStore interface {
	Append(ctx context.Context, eventType, payload string) error
	PeekBatch(ctx context.Context, limit int) ([]models.BufferedRecord, error)
	Delete(ctx context.Context, ids []int64) error
	IncrementRetry(ctx context.Context, ids []int64) error
	DeleteExhausted(ctx context.Context, maxRetries int) (int64, error)
	Depth(ctx context.Context) (int64, error)
}

// Doer is the minimal HTTP client surface, for substitution in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
