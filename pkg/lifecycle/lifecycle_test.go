package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpark/parkedge/pkg/logger"
)

type fakeService struct {
	startErr error
	block    bool
	stopped  chan struct{}
}

func (f *fakeService) Start(_ context.Context) error {
	if !f.block {
		return f.startErr
	}

	// Blocks until Stop releases it, like a real service loop.
	<-f.stopped

	return nil
}

func (f *fakeService) Stop(_ context.Context) error {
	close(f.stopped)
	return nil
}

func TestRunReturnsServiceError(t *testing.T) {
	errBoom := errors.New("boom")
	svc := &fakeService{startErr: errBoom, stopped: make(chan struct{})}

	err := Run(context.Background(), svc, logger.NewTestLogger())
	assert.ErrorIs(t, err, errBoom)
}

func TestRunCleanExit(t *testing.T) {
	svc := &fakeService{stopped: make(chan struct{})}

	assert.NoError(t, Run(context.Background(), svc, logger.NewTestLogger()))
}

func TestRunStopsOnCancellation(t *testing.T) {
	svc := &fakeService{block: true, stopped: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, Run(ctx, svc, logger.NewTestLogger()))

	select {
	case <-svc.stopped:
	default:
		t.Fatal("service was not stopped")
	}
}

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger("edge", &logger.Config{Level: "info", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = CreateComponentLogger("edge", &logger.Config{Level: "not-a-level"})
	assert.Error(t, err)
}
