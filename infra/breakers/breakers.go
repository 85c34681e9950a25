// Package breakers guards the coordinator's periodic checkpoint writes
// with a circuit breaker: once the checkpoint directory starts failing
// (disk full, permissions lost, mount gone), further saves are skipped
// for a few write intervals instead of every interval retrying the same
// failing I/O.
package breakers

import (
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
)

// defaultWriteCadence stands in when the caller cannot estimate how often
// checkpoint saves land.
const defaultWriteCadence = 30 * time.Second

// Breaker wraps a circuit breaker tuned to checkpoint I/O.
type Breaker struct{ cb *cb.CircuitBreaker }

// NewCheckpoint returns a breaker for a checkpoint directory written
// roughly every writeCadence. Two consecutive failed saves open it — a
// broken checkpoint root does not heal between adjacent writes, so there
// is no point sampling a longer failure-rate window — and it stays open
// for three cadences before half-open probes with a single save.
func NewCheckpoint(name string, writeCadence time.Duration) *Breaker {
	if writeCadence <= 0 {
		writeCadence = defaultWriteCadence
	}
	st := cb.Settings{
		Name:     name,
		Interval: writeCadence,
		Timeout:  3 * writeCadence,
		ReadyToTrip: func(counts cb.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
		OnStateChange: func(name string, from, to cb.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("checkpoint breaker state change")
		},
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs one checkpoint save through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State reports the breaker's current state, for health reporting.
func (b *Breaker) State() cb.State { return b.cb.State() }
