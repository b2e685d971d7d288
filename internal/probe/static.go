package probe

import (
	"context"
	"sync"
)

// Static replays queued samples in order and then repeats the last one.
// A queued nil simulates a tick where nothing could be sampled.
type Static struct {
	mu    sync.Mutex
	queue []*Sample
	last  *Sample
	err   error
}

func NewStatic(samples ...*Sample) *Static {
	return &Static{queue: samples}
}

// Push appends samples to the replay queue.
func (p *Static) Push(samples ...*Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, samples...)
}

// FailNext makes the next call return err.
func (p *Static) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *Static) Sample(_ context.Context, opts Options) (*Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.err; err != nil {
		p.err = nil
		return nil, err
	}
	if len(p.queue) > 0 {
		p.last = p.queue[0]
		p.queue = p.queue[1:]
	}
	if p.last == nil {
		return nil, nil
	}
	s := *p.last
	if !opts.CaptureWindowTitle {
		s.WindowTitle = ""
	}
	return &s, nil
}
