package browse

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"cartelera/models"
)

var ErrSessionNotFound = errors.New("browse session not found")

const sweepInterval = time.Minute

// Registry hands out controllers keyed by session id and reaps the ones
// that have been idle longer than the configured TTL.
type Registry struct {
	catalog   CatalogClient
	qr        QRGenerator
	detailURL string
	ttl       time.Duration

	mu       sync.RWMutex
	sessions map[string]*entry

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type entry struct {
	controller *Controller
	lastSeen   time.Time
}

// NewRegistry creates a registry producing controllers with the given
// upstream boundaries.
func NewRegistry(catalog CatalogClient, qr QRGenerator, detailURL string, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{
		catalog:   catalog,
		qr:        qr,
		detailURL: detailURL,
		ttl:       ttl,
		sessions:  make(map[string]*entry),
	}
}

// Create makes a new browse session preloaded with the default feed.
func (r *Registry) Create(ctx context.Context) (string, *Controller) {
	c := NewController(r.catalog, r.qr, r.detailURL)
	if err := c.SelectCategory(ctx, models.CategoryFeed); err != nil {
		log.Printf("[browse] initial feed load failed: %v", err)
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &entry{controller: c, lastSeen: time.Now()}
	r.mu.Unlock()
	return id, c
}

// Get returns the controller for a session id and refreshes its idle timer.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = time.Now()
	return e.controller, nil
}

// Remove drops a session explicitly.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		e.controller.Close()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Start begins the background idle sweep.
func (r *Registry) Start(ctx context.Context) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if r.running {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true

	r.wg.Add(1)
	go r.sweepLoop(ctx)
	log.Println("[browse] session registry started")
}

// Stop halts the sweep and waits for pending overlay fills.
func (r *Registry) Stop() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if !r.running {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.running = false

	r.mu.Lock()
	entries := make([]*entry, 0, len(r.sessions))
	for id, e := range r.sessions {
		entries = append(entries, e)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.controller.Close()
	}
	log.Println("[browse] session registry stopped")
}

func (r *Registry) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*entry
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.controller.Close()
	}
	if n := len(expired); n > 0 {
		log.Printf("[browse] reaped %d idle session(s)", n)
	}
}
