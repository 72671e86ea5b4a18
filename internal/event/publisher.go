package event

import (
	"context"
	"sync"

	"presence-auth/internal/domain"
)

// Publisher entrega eventos de dominio a los suscriptores interesados.
// La entrega es fire-and-forget para el core: un fallo del publisher no
// revierte la mutación de store ya confirmada.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Subscriber recibe eventos publicados en un MemoryPublisher.
type Subscriber func(ev domain.Event)

// MemoryPublisher distribuye eventos en proceso a una lista de suscriptores.
// Es el publisher por defecto cuando no hay redis configurado.
type MemoryPublisher struct {
	mu          sync.Mutex
	subscribers []Subscriber
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Subscribe registra un suscriptor. No hay unsubscribe: los suscriptores
// viven lo que vive el proceso.
func (p *MemoryPublisher) Subscribe(sub Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, sub)
}

func (p *MemoryPublisher) Publish(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	subs := append([]Subscriber(nil), p.subscribers...)
	p.mu.Unlock()
	for _, sub := range subs {
		sub(ev)
	}
	return nil
}
