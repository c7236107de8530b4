package audio

import "context"

// Discard is a speaker that consumes frames without playing them, at the
// speed they arrive.
type Discard struct{}

func (Discard) Play(ctx context.Context, frames <-chan Frame, rate float64) (<-chan error, error) {
	done := make(chan error)
	go func() {
		defer close(done)
		for {
			select {
			case _, ok := <-frames:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return done, nil
}
