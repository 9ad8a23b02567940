package gpuexec

import (
	"context"
	"testing"
	"time"

	"github.com/orneryd/yggdrasil/internal/physics"
	"github.com/orneryd/yggdrasil/internal/yerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFailsAndFallsBackWithoutDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	exec := New(cfg, nil)

	err := exec.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, yerrors.ErrInitializationFailed)
	assert.False(t, exec.Available())
	assert.EqualValues(t, 3, exec.Stats().InitAttempts)
}

func TestStepBeforeInitReturnsError(t *testing.T) {
	exec := New(DefaultConfig(), nil)
	err := exec.Step(nil, physics.DefaultParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, yerrors.ErrInitializationFailed)
}
