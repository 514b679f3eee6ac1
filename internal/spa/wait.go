package spa

import (
	"context"
	"time"
)

// Mutation is one batch of DOM mutations. A zero At means "now".
type Mutation struct {
	At    time.Time
	Count int
}

// Source delivers mutation batches. The channel is closed when the source ends.
type Source interface {
	Mutations() <-chan Mutation
}

// ChannelSource adapts a plain channel.
type ChannelSource chan Mutation

func (c ChannelSource) Mutations() <-chan Mutation { return c }

// Clock abstracts time so the driver can run against a virtual clock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Outcome is the single "ready to extract" signal.
type Outcome struct {
	Ready   bool
	Stable  bool
	Reason  Reason
	Elapsed time.Duration
}

// Checkpoint is called at every intermediate stage; returning true resolves
// the wait early because an extraction already succeeded.
type Checkpoint func(stage int) bool

// Wait blocks until the page is stable, a checkpoint succeeds, the ceiling is
// reached or ctx is done. It never waits past the last stage.
func Wait(ctx context.Context, src Source, cfg Config, clock Clock, checkpoint Checkpoint) Outcome {
	if clock == nil {
		clock = RealClock
	}
	start := clock.Now()
	m := NewMachine(cfg, start)

	var mutations <-chan Mutation
	if src != nil {
		mutations = src.Mutations()
	}

	for {
		now := clock.Now()
		d := m.Advance(now)
		if d.Checkpoint {
			if checkpoint != nil && checkpoint(d.Stage) {
				return Outcome{Ready: true, Reason: ReasonCheckpoint, Elapsed: clock.Now().Sub(start)}
			}
			continue
		}
		if d.Done {
			return Outcome{Ready: true, Stable: d.Stable, Reason: d.Reason, Elapsed: now.Sub(start)}
		}

		wait := m.NextDeadline().Sub(now)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return Outcome{Reason: ReasonCancelled, Elapsed: clock.Now().Sub(start)}
		case mu, ok := <-mutations:
			if !ok {
				mutations = nil
				continue
			}
			at := mu.At
			if at.IsZero() {
				at = clock.Now()
			}
			m.Observe(at, mu.Count)
		case <-clock.After(wait):
		}
	}
}
