package task

// Handle tracks a single submitted item. It resolves exactly once, when the
// item reaches its terminal outcome.
type Handle struct {
	target  *Target
	done    chan struct{}
	outcome Outcome
}

func newHandle(target *Target) *Handle {
	return &Handle{
		target: target,
		done:   make(chan struct{}),
	}
}

// Target returns the item this handle tracks.
func (h *Handle) Target() *Target {
	return h.target
}

// Done returns a channel that is closed once the item has resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the item resolves and returns its outcome.
func (h *Handle) Wait() Outcome {
	<-h.done
	return h.outcome
}

// Outcome returns the terminal outcome without blocking. Before Done is
// closed it returns the zero Outcome.
func (h *Handle) Outcome() Outcome {
	select {
	case <-h.done:
		return h.outcome
	default:
		return Outcome{}
	}
}

// complete publishes the outcome. The channel close orders the write ahead
// of any read through Wait or Outcome.
func (h *Handle) complete(out Outcome) {
	h.outcome = out
	close(h.done)
}
