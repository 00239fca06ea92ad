package words

import "context"

// Player starts playback of a pronunciation clip
type Player interface {
	// Play starts the clip at path and returns without waiting for it to finish
	Play(ctx context.Context, path string) (Playback, error)
}

// Playback is one live clip
type Playback interface {
	// Stop halts the clip. Safe to call more than once and after it finished.
	Stop()
	// Done is closed when the clip ends, naturally or through Stop
	Done() <-chan struct{}
	// Err reports why the clip ended abnormally; nil after a natural end or Stop
	Err() error
}

// instantPlayer is used when no player is configured: clips end immediately
type instantPlayer struct{}

func (instantPlayer) Play(context.Context, string) (Playback, error) {
	done := make(chan struct{})
	close(done)
	return finishedPlayback{done: done}, nil
}

type finishedPlayback struct {
	done chan struct{}
}

func (p finishedPlayback) Stop()                 {}
func (p finishedPlayback) Done() <-chan struct{} { return p.done }
func (p finishedPlayback) Err() error            { return nil }
