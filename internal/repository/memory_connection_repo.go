package repository

import (
	"context"
	"sync"

	"presence-auth/internal/domain"
)

// MemoryConnectionRepository es la implementación de referencia en memoria
// del registro de conexiones.
type MemoryConnectionRepository struct {
	mu     sync.Mutex
	byID   map[string]domain.Connection
	byUser map[string]map[string]struct{} // user id -> set de connection ids
	order  []string
}

func NewMemoryConnectionRepository() *MemoryConnectionRepository {
	return &MemoryConnectionRepository{
		byID:   make(map[string]domain.Connection),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryConnectionRepository) Create(ctx context.Context, c domain.Connection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; ok {
		return ErrConflict
	}
	r.byID[c.ID] = c
	if c.UserID != "" {
		set, ok := r.byUser[c.UserID]
		if !ok {
			set = make(map[string]struct{})
			r.byUser[c.UserID] = set
		}
		set[c.ID] = struct{}{}
	}
	r.order = append(r.order, c.ID)
	return nil
}

func (r *MemoryConnectionRepository) GetByConnectionID(ctx context.Context, id string) (domain.Connection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Connection{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.Connection{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryConnectionRepository) RemoveByConnectionID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	r.drop(id)
	return true, nil
}

func (r *MemoryConnectionRepository) ListActive(ctx context.Context) ([]domain.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]domain.Connection, 0, len(r.order))
	for _, id := range r.order {
		conns = append(conns, r.byID[id])
	}
	return conns, nil
}

func (r *MemoryConnectionRepository) RemoveAll(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := append([]string(nil), r.order...)
	r.byID = make(map[string]domain.Connection)
	r.byUser = make(map[string]map[string]struct{})
	r.order = nil
	return ids, nil
}

func (r *MemoryConnectionRepository) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID]) > 0, nil
}

func (r *MemoryConnectionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID]), nil
}

// drop elimina una conexión de todos los índices. Requiere mu tomado.
func (r *MemoryConnectionRepository) drop(id string) {
	c, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if c.UserID != "" {
		set := r.byUser[c.UserID]
		delete(set, id)
		if len(set) == 0 {
			delete(r.byUser, c.UserID)
		}
	}
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
