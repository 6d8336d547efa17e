package runtime

import (
	"sync"

	"github.com/pithecene-io/covered/types"
)

// terminal is resolved exactly once with the first terminal decision of a
// run. Later resolve calls are no-ops, so events delivered after the
// decision cannot change it.
type terminal struct {
	once    sync.Once
	done    chan struct{}
	outcome *types.RunOutcome
}

func newTerminal() *terminal {
	return &terminal{done: make(chan struct{})}
}

// resolve records outcome if no decision has been made yet.
// Returns true if this call made the decision.
func (t *terminal) resolve(outcome *types.RunOutcome) bool {
	won := false
	t.once.Do(func() {
		t.outcome = outcome
		won = true
		close(t.done)
	})
	return won
}

// resolved reports whether a decision has been made.
func (t *terminal) resolved() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// wait returns a channel closed once a decision is made.
func (t *terminal) wait() <-chan struct{} { return t.done }

// result returns the decision. Only valid after wait() is closed.
func (t *terminal) result() *types.RunOutcome {
	<-t.done
	return t.outcome
}
