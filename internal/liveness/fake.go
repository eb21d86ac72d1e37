package liveness

import (
	"context"
	"sync"
)

// Fake returns a fixed verdict, or Err when set. Calls are counted.
type Fake struct {
	mu      sync.Mutex
	verdict Verdict
	err     error
	calls   int
	last    Image
}

// NewFake returns a judge that accepts every frame with confidence 0.95.
func NewFake() *Fake {
	return &Fake{verdict: Verdict{IsHuman: true, Confidence: 0.95}}
}

func (f *Fake) SetVerdict(v Verdict) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdict = v
	f.err = nil
}

func (f *Fake) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) LastImage() Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *Fake) Evaluate(ctx context.Context, img Image) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = img
	if f.err != nil {
		return Verdict{}, f.err
	}
	return f.verdict, nil
}
