package taskledger

import (
	"context"
	"sync"
)

// FakeBoard serves accounts from memory. Unknown ids yield ErrUnknownAccount.
type FakeBoard struct {
	mu       sync.Mutex
	accounts map[string]int
	err      error
	lookups  int
}

func NewFakeBoard() *FakeBoard {
	return &FakeBoard{accounts: make(map[string]int)}
}

func (b *FakeBoard) Set(externalID string, points int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[externalID] = points
}

// SetError makes every lookup fail with err until cleared with nil.
func (b *FakeBoard) SetError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *FakeBoard) Lookups() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookups
}

func (b *FakeBoard) Account(_ context.Context, externalID string) (*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups++
	if b.err != nil {
		return nil, b.err
	}
	points, ok := b.accounts[externalID]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return &Account{ID: externalID, Points: points}, nil
}
