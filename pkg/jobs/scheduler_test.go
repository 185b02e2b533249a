package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(nil, 0)
	err := s.Register("cleanup", "every now and then", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestRegisterRejectsNilTask(t *testing.T) {
	s := NewScheduler(nil, 0)
	require.Error(t, s.Register("cleanup", "@every 1h", nil))
}

func TestRunSwallowsTaskErrors(t *testing.T) {
	s := NewScheduler(nil, 0)
	called := false
	s.run("cleanup", func(ctx context.Context) error {
		called = true
		return errors.New("disk full")
	})
	assert.True(t, called)
}

func TestStopCancelsTaskContext(t *testing.T) {
	s := NewScheduler(nil, 0)
	require.NoError(t, s.Register("cleanup", "@every 1h", func(context.Context) error { return nil }))
	s.Start()
	s.Stop()

	var ctxErr error
	s.run("cleanup", func(ctx context.Context) error {
		ctxErr = ctx.Err()
		return nil
	})
	assert.ErrorIs(t, ctxErr, context.Canceled)
}
