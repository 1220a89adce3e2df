package app

import (
	"context"
	"sync"

	"github.com/fd1az/dapp-bridge/business/events/domain"
)

// FilterHandle identifies an attached filter. Pass it to Detach to stop it.
type FilterHandle struct {
	filter  domain.Filter
	key     filterKey
	onEvent func(domain.Record)

	mu     sync.RWMutex
	state  domain.FilterState
	cursor domain.Cursor

	cancel context.CancelFunc
	done   chan struct{}
}

// Filter returns the attached filter.
func (h *FilterHandle) Filter() domain.Filter {
	return h.filter
}

// State returns the filter's lifecycle state.
func (h *FilterHandle) State() domain.FilterState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Position returns the last delivered key.
func (h *FilterHandle) Position() (domain.Key, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor.Position()
}

// Done is closed once the filter's goroutine has exited.
func (h *FilterHandle) Done() <-chan struct{} {
	return h.done
}

func (h *FilterHandle) setState(s domain.FilterState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *FilterHandle) transition(from, to domain.FilterState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return false
	}
	h.state = to
	return true
}

// admit advances the cursor for a live filter.
func (h *FilterHandle) admit(k domain.Key) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != domain.FilterFetchingHistory && h.state != domain.FilterSubscribed {
		return false
	}
	return h.cursor.Admit(k)
}

func (h *FilterHandle) resumeBlock() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor.ResumeBlock(h.filter.FromBlock)
}
