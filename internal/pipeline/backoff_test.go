package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestSleepWithContext(t *testing.T) {
	fc := clockwork.NewFakeClock()
	assert.True(t, sleepWithContext(context.Background(), fc, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepWithContext(ctx, fc, time.Second))
}
