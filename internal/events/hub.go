// Package events provides the in-process publish/subscribe surface the
// pipeline uses to report download, extraction, library, and game activity to
// its host shell. Every subscription returns a handle whose Close disposes it;
// a closed handle never fires again.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a logical event stream.
type Kind string

const (
	KindDownloadStarted    Kind = "download_started"
	KindDownloadProgress   Kind = "download_progress"
	KindDownloadCompleted  Kind = "download_completed"
	KindDownloadFailed     Kind = "download_failed"
	KindDownloadCancelled  Kind = "download_cancelled"
	KindExtractionStarted  Kind = "extraction_started"
	KindExtractionFinished Kind = "extraction_finished"
	KindLibraryAdded       Kind = "library_added"
	KindLibraryRemoved     Kind = "library_removed"
	KindGameStarted        Kind = "game_started"
	KindGameStopped        Kind = "game_stopped"
)

// DownloadStarted is published when the facility reports a new download.
type DownloadStarted struct {
	ID         int64
	Filename   string
	TotalBytes int64
}

// DownloadProgress is published on every progress tick.
type DownloadProgress struct {
	ID              int64
	DownloadedBytes int64
	TotalBytes      int64
	Speed           int64
	Progress        float64
}

// DownloadCompleted is published when a download reaches completed.
type DownloadCompleted struct {
	ID       int64
	Filename string
	SavePath string
}

// DownloadFailed is published when a download fails.
type DownloadFailed struct {
	ID      int64
	Message string
}

// DownloadCancelled is published after a local cancellation mark.
type DownloadCancelled struct {
	ID int64
}

// ExtractionStarted is published when archive extraction begins.
type ExtractionStarted struct {
	DownloadID  int64
	ArchivePath string
	DestPath    string
}

// ExtractionFinished is published with the terminal extraction outcome.
type ExtractionFinished struct {
	DownloadID int64
	DestPath   string
	Err        error
}

// LibraryAdded is published when an install graduates into the library.
type LibraryAdded struct {
	ItemID        int64
	Title         string
	ExtractedPath string
}

// LibraryRemoved is published when a library item is removed.
type LibraryRemoved struct {
	ItemID int64
}

// GameStarted is published when a game process spawns.
type GameStarted struct {
	GameID int64
	PID    int
}

// GameStopped is published when a game process exits.
type GameStopped struct {
	GameID   int64
	Duration time.Duration
	ExitCode int
	Err      error
}

// Event pairs a stream kind with its payload.
type Event struct {
	Kind    Kind
	Payload any
}

// Handle disposes a subscription. Close is idempotent.
type Handle struct {
	id   string
	once sync.Once
	hub  *Hub
}

// Close removes the subscription from the hub.
func (h *Handle) Close() {
	if h == nil || h.hub == nil {
		return
	}
	h.once.Do(func() {
		h.hub.remove(h.id)
	})
}

type subscription struct {
	kind Kind // empty matches all kinds
	fn   func(Event)
}

// Hub fans events out to subscribers. Delivery is synchronous in publish
// order; handlers must not block.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string]subscription
	order []string
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]subscription)}
}

// Subscribe registers fn for every event kind.
func (h *Hub) Subscribe(fn func(Event)) *Handle {
	return h.add("", fn)
}

// SubscribeKind registers fn for a single event kind.
func (h *Hub) SubscribeKind(kind Kind, fn func(Event)) *Handle {
	return h.add(kind, fn)
}

func (h *Hub) add(kind Kind, fn func(Event)) *Handle {
	if fn == nil {
		return &Handle{}
	}
	id := uuid.NewString()
	h.mu.Lock()
	h.subs[id] = subscription{kind: kind, fn: fn}
	h.order = append(h.order, id)
	h.mu.Unlock()
	return &Handle{id: id, hub: h}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
	for i, existing := range h.order {
		if existing == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Publish delivers event to all matching subscribers in registration order.
func (h *Hub) Publish(kind Kind, payload any) {
	event := Event{Kind: kind, Payload: payload}

	h.mu.RLock()
	fns := make([]func(Event), 0, len(h.order))
	for _, id := range h.order {
		sub, ok := h.subs[id]
		if !ok {
			continue
		}
		if sub.kind != "" && sub.kind != kind {
			continue
		}
		fns = append(fns, sub.fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}
