package repository

import (
	"context"
	"sync"
	"time"

	"presence-auth/internal/domain"
)

// MemorySessionRepository es la implementación de referencia en memoria.
// Sirve como store por defecto cuando no hay base de datos configurada.
type MemorySessionRepository struct {
	mu        sync.Mutex
	byID      map[string]domain.Session
	byRefresh map[string]string // refresh token -> session id
	order     []string          // ids en orden de inserción, para evicción FIFO
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		byID:      make(map[string]domain.Session),
		byRefresh: make(map[string]string),
	}
}

func (r *MemorySessionRepository) Add(ctx context.Context, s domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; ok {
		return ErrConflict
	}
	r.byID[s.ID] = s
	r.byRefresh[s.RefreshToken] = s.ID
	r.order = append(r.order, s.ID)
	return nil
}

func (r *MemorySessionRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[id]
	return ok, nil
}

func (r *MemorySessionRepository) FindByRefreshToken(ctx context.Context, token string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRefresh[token]
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemorySessionRepository) RemoveByRefreshToken(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRefresh[token]
	if !ok {
		return false, nil
	}
	r.drop(id)
	return true, nil
}

func (r *MemorySessionRepository) RemoveAll(ctx context.Context, userID string) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []domain.Session
	for _, id := range append([]string(nil), r.order...) {
		s := r.byID[id]
		if s.UserID == userID {
			removed = append(removed, s)
			r.drop(id)
		}
	}
	return removed, nil
}

func (r *MemorySessionRepository) CountActive(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, s := range r.byID {
		if s.UserID == userID && s.Valid(now) {
			n++
		}
	}
	return n, nil
}

func (r *MemorySessionRepository) OldestByUser(ctx context.Context, userID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		s := r.byID[id]
		if s.UserID == userID {
			return s, nil
		}
	}
	return domain.Session{}, ErrNotFound
}

// drop elimina una sesión de todos los índices. Requiere mu tomado.
func (r *MemorySessionRepository) drop(id string) {
	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byRefresh, s.RefreshToken)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
