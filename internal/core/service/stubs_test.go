package service

import (
	"context"
	"sort"
	"sync"

	"github.com/99minutos/user-management/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory user repository
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu      sync.Mutex
	users   map[int64]*domain.User
	nextID  int64
	findErr error // returned by every finder when set

	finds   int
	inserts int
	updates int
	deletes []int64
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[int64]*domain.User), nextID: 1}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// seed stores u with its own ID.
func (r *stubUserRepo) seed(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = cloneUser(u)
	if u.ID >= r.nextID {
		r.nextID = u.ID + 1
	}
	return cloneUser(u)
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// conflict mimics the table's unique constraints.
func (r *stubUserRepo) conflict(u *domain.User) error {
	for _, other := range r.users {
		if other.ID == u.ID {
			continue
		}
		if other.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
		if other.Username == u.Username {
			return domain.ErrDuplicateUsername
		}
	}
	return nil
}

func (r *stubUserRepo) Insert(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(u); err != nil {
		return err
	}
	u.ID = r.nextID
	r.nextID++
	r.users[u.ID] = cloneUser(u)
	r.inserts++
	return nil
}

func (r *stubUserRepo) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	if err := r.conflict(u); err != nil {
		return err
	}
	r.users[u.ID] = cloneUser(u)
	r.updates++
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	r.deletes = append(r.deletes, id)
	return nil
}

func (r *stubUserRepo) List(_ context.Context, skip, limit int) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []*domain.User{}
	for i, id := range ids {
		if i < skip {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, cloneUser(r.users[id]))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Audit doubles
// ---------------------------------------------------------------------------

type stubPublisher struct {
	events []domain.AuditEvent
}

func (p *stubPublisher) Publish(e domain.AuditEvent) {
	p.events = append(p.events, e)
}

type stubAuditRepo struct {
	insertErr error
	inserted  []*domain.AuditEvent
}

func (r *stubAuditRepo) InsertEvent(_ context.Context, e *domain.AuditEvent) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.inserted = append(r.inserted, e)
	return nil
}

func (r *stubAuditRepo) Recent(_ context.Context, tenant string, limit int) ([]*domain.AuditEvent, error) {
	var out []*domain.AuditEvent
	for i := len(r.inserted) - 1; i >= 0 && len(out) < limit; i-- {
		if r.inserted[i].Tenant == tenant {
			out = append(out, r.inserted[i])
		}
	}
	return out, nil
}
