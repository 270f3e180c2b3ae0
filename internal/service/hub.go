package service

import (
	"sync"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/autodoc-ai/stepsync/internal/api"
)

// ProgressHub fans render progress events out to websocket subscribers,
// keyed by guide ID. Publish never blocks: a subscriber that can't keep up
// loses events instead of stalling the render loop.
type ProgressHub struct {
	lock sync.Mutex
	subs map[string]map[chan api.Progress]struct{}
}

// NewProgressHub creates the hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: map[string]map[chan api.Progress]struct{}{}}
}

// Publish delivers the event to every subscriber of its guide.
func (h *ProgressHub) Publish(p api.Progress) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for ch := range h.subs[p.GuideID] {
		select {
		case ch <- p:
		default:
			goapp.Log.Warn().Str("guide", p.GuideID).Msg("slow progress subscriber, event dropped")
		}
	}
}

// Subscribe registers a listener for one guide. The returned func removes it.
func (h *ProgressHub) Subscribe(guideID string) (<-chan api.Progress, func()) {
	ch := make(chan api.Progress, 16)
	h.lock.Lock()
	if h.subs[guideID] == nil {
		h.subs[guideID] = map[chan api.Progress]struct{}{}
	}
	h.subs[guideID][ch] = struct{}{}
	h.lock.Unlock()

	return ch, func() {
		h.lock.Lock()
		defer h.lock.Unlock()
		if set, ok := h.subs[guideID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, guideID)
			}
		}
		close(ch)
	}
}
