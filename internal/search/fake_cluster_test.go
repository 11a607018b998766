package search

import (
	"context"
	"sync"
)

// fakeCluster is an in-memory Cluster for tests
type fakeCluster struct {
	mu sync.Mutex

	status    string
	healthErr error
	healthN   int

	response  []byte
	searchErr error
	searchN   int
	lastIndex string
	lastBody  []byte
	panicMsg  string

	aliases map[string][]string
}

func (f *fakeCluster) Search(_ context.Context, index string, body []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchN++
	f.lastIndex = index
	f.lastBody = body
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.response, nil
}

func (f *fakeCluster) Health(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthN++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.status, f.healthErr
}

func (f *fakeCluster) ResolveAlias(_ context.Context, alias string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	indices, ok := f.aliases[alias]
	if !ok {
		return nil, ErrIndexUnavailable
	}
	return indices, nil
}

func (f *fakeCluster) healthCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthN
}
