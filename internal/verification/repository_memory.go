package verification

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository. It enforces the same
// uniqueness rules as the database backends.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
	seq     map[string]int
	next    int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*Record),
		seq:     make(map[string]int),
	}
}

func (m *MemoryRepository) Create(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.records {
		if rec.RequestID != "" && existing.RequestID == rec.RequestID {
			return ErrDuplicateRequestID
		}
		if existing.UserID == rec.UserID && existing.Status.Blocking() && rec.Status.Blocking() {
			return ErrActiveRecordExists
		}
	}

	m.records[rec.ID] = rec.Clone()
	m.seq[rec.ID] = m.next
	m.next++
	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryRepository) LatestByUser(ctx context.Context, userID string) (*Record, error) {
	records := m.collect(func(r *Record) bool { return r.UserID == userID })
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (m *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*Record, error) {
	return m.collect(func(r *Record) bool { return r.UserID == userID }), nil
}

func (m *MemoryRepository) ListByCrop(ctx context.Context, cropID string) ([]*Record, error) {
	return m.collect(func(r *Record) bool { return r.CropID == cropID }), nil
}

func (m *MemoryRepository) List(ctx context.Context, filter ListFilter, page Page) ([]*Record, int64, error) {
	all := m.collect(func(r *Record) bool { return matches(r, filter) })
	total := int64(len(all))

	start := page.Offset()
	if start >= len(all) {
		return []*Record{}, total, nil
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *MemoryRepository) RequestIDExists(ctx context.Context, requestID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.RequestID == requestID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) UpdatePhotos(ctx context.Context, id string, photos []Photo, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	if rec.Status != StatusPending {
		return ErrStatusConflict
	}
	rec.Photos = append([]Photo(nil), photos...)
	rec.UpdatedAt = updatedAt
	return nil
}

func (m *MemoryRepository) Finalize(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[rec.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if stored.Status != StatusPending {
		return ErrStatusConflict
	}
	if rec.Status == StatusApproved && SummarizePhotos(stored.Photos).Approved == 0 {
		return ErrNoApprovedPhoto
	}

	stored.Status = rec.Status
	stored.ReviewedAt = rec.Clone().ReviewedAt
	stored.ReviewedBy = rec.ReviewedBy
	stored.RejectionReason = rec.RejectionReason
	stored.RejectionNotes = rec.RejectionNotes
	stored.Location.LocationType = rec.Location.LocationType
	stored.UpdatedAt = rec.UpdatedAt
	return nil
}

func (m *MemoryRepository) UpdateLocationType(ctx context.Context, id string, locationType LocationType, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Location.LocationType = locationType
	rec.UpdatedAt = updatedAt
	return nil
}

func (m *MemoryRepository) ListMissingRequestID(ctx context.Context, limit int) ([]*Record, error) {
	out := m.collect(func(r *Record) bool { return r.RequestID == "" })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) SetRequestID(ctx context.Context, id, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	for otherID, other := range m.records {
		if otherID != id && other.RequestID == requestID {
			return ErrDuplicateRequestID
		}
	}
	if rec.RequestID != "" {
		return ErrStatusConflict
	}
	rec.RequestID = requestID
	return nil
}

// Count returns the number of stored records
func (m *MemoryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// collect returns clones of matching records, newest first
func (m *MemoryRepository) collect(keep func(*Record) bool) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0)
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out
}

func matches(r *Record, f ListFilter) bool {
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.UserID != nil && r.UserID != *f.UserID {
		return false
	}
	for _, c := range []struct {
		want  *string
		value string
	}{
		{f.Phone, r.Phone},
		{f.FullName, r.FullName},
		{f.CropName, r.CropName},
		{f.Village, r.Village},
		{f.Taluk, r.Taluk},
		{f.District, r.District},
	} {
		if c.want != nil && !strings.Contains(strings.ToLower(c.value), strings.ToLower(*c.want)) {
			return false
		}
	}
	if f.From != nil && r.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && r.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
