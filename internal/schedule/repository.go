package schedule

import (
	"context"
	"sync"

	"medassist/internal/eventbus"
	"medassist/pkg/logx"
)

// EntryStore is the slice of the persistence layer the repository needs.
type EntryStore interface {
	ListEntries(ctx context.Context) ([]Entry, error)
	CreateEntry(ctx context.Context, e Entry) (Entry, error)
	UpdateEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, id string) error
}

// Repository owns the authoritative in-memory copy of the user's active
// schedule. Reads come from the cache; mutations go through the store
// and then refresh the cache. Every visible change is announced on the
// bus so the detector and UI can react without polling the store.
//
// A failed refresh keeps the previous (stale) snapshot rather than
// clearing it; the read path degrades silently.
type Repository struct {
	store EntryStore
	log   logx.Logger
	bus   eventbus.Bus

	mu      sync.RWMutex
	entries []Entry
}

func NewRepository(store EntryStore, log logx.Logger, bus eventbus.Bus) *Repository {
	return &Repository{store: store, log: log, bus: bus}
}

// Refresh reloads the cache from the store. Transport failures are
// logged and swallowed; the stale cache stays visible.
func (r *Repository) Refresh(ctx context.Context) {
	list, err := r.store.ListEntries(ctx)
	if err != nil {
		r.log.Warn("schedule refresh failed; keeping stale cache", logx.Err(err))
		return
	}

	r.mu.Lock()
	r.entries = list
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.TypeScheduleChanged, Data: len(list)})
	}
}

// Entries returns a copy of the cached snapshot.
func (r *Repository) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries...)
}

// Len reports the cached entry count.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Get returns the cached entry with the given id.
func (r *Repository) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Create validates and submits one creation request, then refreshes.
func (r *Repository) Create(ctx context.Context, req CreateRequest) (Entry, error) {
	e := Entry{Name: req.Name, Time: req.Time, Days: req.Days, Period: req.Period}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	days, err := e.Days.Normalize()
	if err != nil {
		return Entry{}, err
	}
	e.Days = days

	created, err := r.store.CreateEntry(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	r.Refresh(ctx)
	return created, nil
}

// CreateBatch submits the expanded requests in order. The first store
// failure aborts the remainder; entries already created stay committed
// and the error is surfaced to the caller.
func (r *Repository) CreateBatch(ctx context.Context, reqs []CreateRequest) ([]Entry, error) {
	var created []Entry
	for _, req := range reqs {
		e, err := r.Create(ctx, req)
		if err != nil {
			return created, err
		}
		created = append(created, e)
	}
	return created, nil
}

// Update replaces the stored name/time/days of an entry.
func (r *Repository) Update(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	days, err := e.Days.Normalize()
	if err != nil {
		return err
	}
	e.Days = days
	if err := r.store.UpdateEntry(ctx, e); err != nil {
		return err
	}
	r.Refresh(ctx)
	return nil
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.DeleteEntry(ctx, id); err != nil {
		return err
	}
	r.Refresh(ctx)
	return nil
}
