package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_Next(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 5 * time.Second}

	var delays []time.Duration
	var delay time.Duration
	for i := 0; i < 5; i++ {
		delay = b.next(delay)
		delays = append(delays, delay)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, delays)
}

func TestPoll(t *testing.T) {
	b := Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Timeout: time.Second}

	t.Run("done after several checks", func(t *testing.T) {
		calls := 0
		err := Poll(context.Background(), b, resource.Fleet, OperationCreate, func(context.Context) (bool, string, error) {
			calls++
			return calls == 3, "ACTIVATING", nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("throttling is retried", func(t *testing.T) {
		calls := 0
		err := Poll(context.Background(), b, resource.Fleet, OperationCreate, func(context.Context) (bool, string, error) {
			calls++
			if calls == 1 {
				return false, "", apiError("ThrottlingException")
			}
			return true, "ACTIVE", nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors stop polling", func(t *testing.T) {
		boom := apiError("ValidationException")
		err := Poll(context.Background(), b, resource.Fleet, OperationCreate, func(context.Context) (bool, string, error) {
			return false, "", boom
		})
		assert.Equal(t, boom, err)
	})

	t.Run("timeout reports the last state", func(t *testing.T) {
		short := Backoff{Initial: 5 * time.Millisecond, Max: 5 * time.Millisecond, Timeout: 20 * time.Millisecond}
		err := Poll(context.Background(), short, resource.Fleet, OperationCreate, func(context.Context) (bool, string, error) {
			return false, "ACTIVATING", nil
		})

		var timeout *errors.ProviderTimeoutError
		require.True(t, errors.As(err, &timeout))
		assert.Equal(t, "Fleet", timeout.Kind)
		assert.Equal(t, OperationCreate, timeout.Operation)
		assert.Equal(t, "ACTIVATING", timeout.LastState)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Poll(ctx, b, resource.Fleet, OperationCreate, func(context.Context) (bool, string, error) {
			return false, "NEW", nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetry(t *testing.T) {
	b := Backoff{Initial: time.Millisecond, Max: time.Millisecond, Timeout: time.Second}
	retryable := func(err error) bool { return errors.HasCode(err, "InvalidParameterValueException") }

	calls := 0
	err := Retry(context.Background(), b, retryable, func(context.Context) error {
		calls++
		if calls < 3 {
			return apiError("InvalidParameterValueException")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), b, retryable, func(context.Context) error {
		calls++
		return apiError("AccessDeniedException")
	})
	assert.True(t, errors.HasCode(err, "AccessDeniedException"))
	assert.Equal(t, 1, calls)
}

type stubDriver struct {
	ids       map[string]string
	createErr error
	deleteErr error
}

func (s stubDriver) Create(context.Context, Input) (map[string]string, error) {
	return s.ids, s.createErr
}

func (s stubDriver) Delete(context.Context, Input) error {
	return s.deleteErr
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown kind", func(t *testing.T) {
		r := NewRegistry(nil)
		_, err := r.Create(ctx, resource.Build, Input{})
		assert.ErrorIs(t, err, errors.ErrUnknownKind)
	})

	t.Run("create classifies errors and keeps partial ids", func(t *testing.T) {
		r := NewRegistry(map[resource.Kind]Driver{
			resource.RestApi: stubDriver{
				ids:       map[string]string{resource.IDRestApiID: "api1234"},
				createErr: fmt.Errorf("failed to deploy: %w", apiError("LimitExceededException")),
			},
		})
		ids, err := r.Create(ctx, resource.RestApi, Input{})
		assert.Equal(t, "api1234", ids[resource.IDRestApiID])

		var pe *errors.ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "RestApi", pe.Kind)
		assert.Equal(t, OperationCreate, pe.Operation)
		assert.Equal(t, "LimitExceededException", pe.Code)
		assert.Equal(t, errors.HintRetryDifferentParameters, pe.Hint)
	})

	t.Run("delete treats not found as success", func(t *testing.T) {
		r := NewRegistry(map[resource.Kind]Driver{
			resource.Fleet: stubDriver{deleteErr: apiError("NotFoundException")},
		})
		assert.NoError(t, r.Delete(ctx, resource.Fleet, Input{}))
	})

	t.Run("delete classifies other errors", func(t *testing.T) {
		r := NewRegistry(map[resource.Kind]Driver{
			resource.Fleet: stubDriver{deleteErr: apiError("AccessDeniedException")},
		})
		err := r.Delete(ctx, resource.Fleet, Input{})

		var pe *errors.ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, OperationDelete, pe.Operation)
		assert.Equal(t, errors.HintPermissions, pe.Hint)
	})
}

func TestNew_WiresEveryKind(t *testing.T) {
	r := New(Clients{})
	for _, kind := range resource.Kinds {
		_, err := r.driver(kind)
		assert.NoError(t, err, kind.String())
	}
}
