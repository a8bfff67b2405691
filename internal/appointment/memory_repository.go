package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var errNoTable = errors.New(`relation "consultas" does not exist`)

// MemoryRepository keeps the table in process memory. It behaves like the
// Postgres table for everything the service relies on: the table must be
// created before use, ids come from a sequence that only restarts when the
// table is recreated, and NULL columns are rejected.
type MemoryRepository struct {
	mu     sync.RWMutex
	exists bool
	seq    int64
	byID   map[int64]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(ctx context.Context, d Draft) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.exists {
		return nil, storeErr("insert appointment", errNoTable)
	}
	if err := notNull(d); err != nil {
		return nil, storeErr("insert appointment", err)
	}

	r.seq++
	a := Appointment{ID: r.seq}
	d.apply(&a)
	r.byID[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.exists {
		return nil, storeErr("list appointments", errNoTable)
	}

	out := make([]Appointment, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if c := strings.Compare(out[i].AppointmentDate, out[j].AppointmentDate); c != 0 {
			return c < 0
		}
		if c := strings.Compare(out[i].Time, out[j].Time); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (r *MemoryRepository) UpdateByID(ctx context.Context, id int64, d Draft) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.exists {
		return nil, storeErr("update appointment", errNoTable)
	}

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if err := notNull(d); err != nil {
		return nil, storeErr("update appointment", err)
	}

	d.apply(&a)
	r.byID[id] = a
	return &a, nil
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.exists {
		return storeErr("delete appointment", errNoTable)
	}
	if _, ok := r.byID[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepository) ResetSchema(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exists = true
	r.seq = 0
	r.byID = make(map[int64]Appointment)
	return nil
}

func (r *MemoryRepository) EnsureSchema(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.exists {
		r.exists = true
		r.seq = 0
		r.byID = make(map[int64]Appointment)
	}
	return nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func notNull(d Draft) error {
	if missing := d.Missing(); len(missing) > 0 {
		return fmt.Errorf("null value in column %q violates not-null constraint", missing[0])
	}
	return nil
}
