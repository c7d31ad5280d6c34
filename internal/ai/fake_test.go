package ai

import (
	"context"
	"sync"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	errs  []error
	out   string
}

func (f *fakeGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.out, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	errs  []error
	vec   []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.vec, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake:embed"
}
