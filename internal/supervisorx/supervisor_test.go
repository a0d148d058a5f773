// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisorx

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronus.dev/core/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Output: io.Discard})
}

func TestRun_CancelsAllServicesWhenOneFails(t *testing.T) {
	boom := errors.New("boom")
	started := make(chan struct{}, 2)
	var cancelledSecond bool

	sup := New(testLogger())
	sup.Register(Func{FuncName: "failing", RunFunc: func(ctx context.Context) error {
		started <- struct{}{}
		return boom
	}})
	sup.Register(Func{FuncName: "long-runner", RunFunc: func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		cancelledSecond = true
		return nil
	}})

	err := sup.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, cancelledSecond, "surviving service must observe context cancellation")
}

func TestRun_ReturnsNilWhenContextCancelledCleanly(t *testing.T) {
	sup := New(testLogger())
	sup.Register(Func{FuncName: "waits", RunFunc: func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.NoError(t, sup.Run(ctx))
}
