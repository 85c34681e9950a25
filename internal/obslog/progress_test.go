package obslog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunProgressQuietModeDoesNotPanicWithoutSpinner(t *testing.T) {
	rp := NewRunProgress(10, true)
	rp.Update(3, false, 0)
	rp.Update(10, true, 1.5)
	rp.Finish(10, true, 1.5)
}

func TestSpinnerStartStopIsIdempotent(t *testing.T) {
	s := NewSpinner()
	s.Start()
	s.Start()
	require.NotEmpty(t, s.Current())
	s.Stop()
	s.Stop()
}

func TestRunProgressHandlesZeroTotal(t *testing.T) {
	rp := NewRunProgress(0, true)
	rp.Update(1, false, 0)
	rp.Finish(1, false, 0)
}
