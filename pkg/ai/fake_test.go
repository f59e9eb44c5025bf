package ai

import (
	"context"
	"sync"
)

// fakeGen records requests and replays canned replies.
type fakeGen struct {
	mu    sync.Mutex
	reqs  []Request
	reply Reply
	err   error
}

func (f *fakeGen) Generate(_ context.Context, req Request) (Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeGen) last() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}
