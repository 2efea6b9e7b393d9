// Package state holds the authentication session the widgets display. It is
// written by the auth feedback path and read by labels through Snapshot.
package state

import "sync"

type Phase int

const (
	LOCKED Phase = iota
	AUTHENTICATING
	FAILED
	UNLOCKED
)

func (p Phase) String() string {
	switch p {
	case LOCKED:
		return "locked"
	case AUTHENTICATING:
		return "authenticating"
	case FAILED:
		return "failed"
	case UNLOCKED:
		return "unlocked"
	}
	return "unknown"
}

type FailInfo struct {
	Text   string
	Source string
}

type Session struct {
	Phase    Phase
	Fail     FailInfo
	Attempts int
	Prompt   string
	// DisplayFail is set while the last failure should be shown.
	DisplayFail bool
}

type Store struct {
	mu    sync.RWMutex
	state Session
}

func NewStore() *Store {
	return &Store{state: Session{Phase: LOCKED}}
}

func (store *Store) Snapshot() Session {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.state
}

func (store *Store) SetPhase(phase Phase) {
	store.mu.Lock()
	store.state.Phase = phase
	store.mu.Unlock()
}

func (store *Store) SetPrompt(prompt string) {
	store.mu.Lock()
	store.state.Prompt = prompt
	store.mu.Unlock()
}

// RecordFail stores a failed attempt and bumps the attempt counter.
func (store *Store) RecordFail(fail FailInfo) {
	store.mu.Lock()
	store.state.Fail = fail
	store.state.Attempts++
	store.state.Phase = FAILED
	store.mu.Unlock()
}

func (store *Store) SetDisplayFail(display bool) {
	store.mu.Lock()
	store.state.DisplayFail = display
	if !display && store.state.Phase == FAILED {
		store.state.Phase = LOCKED
	}
	store.mu.Unlock()
}
