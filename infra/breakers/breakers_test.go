package breakers

import (
	"errors"
	"testing"
	"time"

	cb "github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterTwoConsecutiveFailedSaves(t *testing.T) {
	b := NewCheckpoint("test", time.Second)
	fail := func() (any, error) { return nil, errors.New("disk full") }

	_, err := b.Execute(fail)
	require.Error(t, err)
	require.Equal(t, cb.StateClosed, b.State())

	_, err = b.Execute(fail)
	require.Error(t, err)
	require.Equal(t, cb.StateOpen, b.State())

	// Saves are rejected outright while open, not attempted.
	_, err = b.Execute(func() (any, error) { return nil, nil })
	require.ErrorIs(t, err, cb.ErrOpenState)
}

func TestBreakerStaysClosedWhenSavesAlternate(t *testing.T) {
	b := NewCheckpoint("test", time.Second)
	fail := func() (any, error) { return nil, errors.New("transient") }
	ok := func() (any, error) { return nil, nil }

	for i := 0; i < 10; i++ {
		_, _ = b.Execute(fail)
		_, err := b.Execute(ok)
		require.NoError(t, err)
	}
	require.Equal(t, cb.StateClosed, b.State())
}
