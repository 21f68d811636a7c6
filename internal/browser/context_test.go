package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), key, "tab-1")
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondary", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		cancelSecondary()
		assert.Eventually(t, func() bool {
			return combined.Err() != nil
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("DeadlineFromSecondary", func(t *testing.T) {
		deadline := time.Now().Add(time.Minute)
		secondary, cancelSecondary := context.WithDeadline(context.Background(), deadline)
		defer cancelSecondary()

		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.Equal(t, deadline, got)
	})
}

func TestWithOperationTimeout(t *testing.T) {
	ctx, cancel := withOperationTimeout(context.Background(), time.Minute)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	parent, cancelParent := context.WithTimeout(context.Background(), time.Hour)
	defer cancelParent()
	ctx, cancel2 := withOperationTimeout(parent, time.Second)
	defer cancel2()
	got, _ := ctx.Deadline()
	want, _ := parent.Deadline()
	assert.Equal(t, want, got, "an existing deadline is kept")

	ctx, cancel3 := withOperationTimeout(context.Background(), 0)
	defer cancel3()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
