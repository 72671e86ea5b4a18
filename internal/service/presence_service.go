package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-auth/internal/domain"
	"presence-auth/internal/event"
	"presence-auth/internal/repository"
)

// PresenceService registra conexiones vivas y deriva el estado online de
// cada usuario. Emite los eventos por conexión en cada connect/disconnect
// y los eventos de transición (user.connected / user.disconnected) solo
// cuando el estado agregado realmente cambia.
//
// El chequeo de transición se evalúa siempre después de mutar el registro
// y bajo el lock del usuario: dos connects casi simultáneos del mismo
// usuario no pueden creerse ambos "el primero".
type PresenceService struct {
	logger      *zap.Logger
	connections repository.ConnectionRepository
	users       repository.UserRepository
	publisher   event.Publisher
	locks       *userLocks
}

func NewPresenceService(
	logger *zap.Logger,
	connections repository.ConnectionRepository,
	users repository.UserRepository,
	publisher event.Publisher,
) *PresenceService {
	return &PresenceService{
		logger:      logger,
		connections: connections,
		users:       users,
		publisher:   publisher,
		locks:       newUserLocks(),
	}
}

type ConnectInput struct {
	ConnectionID string
	UserID       string
	IPAddress    string
	DeviceID     string
	UserAgent    string
}

// Connect registra una conexión de transporte nueva, opcionalmente
// atribuida a un usuario.
func (s *PresenceService) Connect(ctx context.Context, input ConnectInput) (domain.Connection, error) {
	conn := domain.Connection{
		ID:          input.ConnectionID,
		UserID:      input.UserID,
		IPAddress:   input.IPAddress,
		DeviceID:    input.DeviceID,
		UserAgent:   input.UserAgent,
		ConnectedAt: time.Now().UTC(),
		Active:      true,
	}
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}

	if conn.UserID != "" {
		unlock := s.locks.lock(conn.UserID)
		defer unlock()
	}

	if err := s.connections.Create(ctx, conn); err != nil {
		return domain.Connection{}, err
	}

	s.publish(ctx, domain.Event{
		Type:         domain.EventClientConnected,
		UserID:       conn.UserID,
		ConnectionID: conn.ID,
		OccurredAt:   conn.ConnectedAt,
	})

	if conn.UserID != "" {
		count, err := s.connections.CountByUser(ctx, conn.UserID)
		if err != nil {
			return conn, err
		}
		if count == 1 {
			s.markTransition(ctx, conn.UserID, domain.EventUserConnected)
		}
	}
	return conn, nil
}

// Disconnect da de baja una conexión. Desconectar un id desconocido es un
// no-op: no hay error ni evento.
func (s *PresenceService) Disconnect(ctx context.Context, connectionID string) (bool, error) {
	conn, err := s.connections.GetByConnectionID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if conn.UserID != "" {
		unlock := s.locks.lock(conn.UserID)
		defer unlock()
	}

	removed, err := s.connections.RemoveByConnectionID(ctx, connectionID)
	if err != nil {
		return false, err
	}
	if !removed {
		// Otro disconnect concurrente la eliminó entre la lectura y el lock.
		return false, nil
	}

	s.publish(ctx, domain.Event{
		Type:         domain.EventClientDisconnected,
		UserID:       conn.UserID,
		ConnectionID: conn.ID,
		OccurredAt:   time.Now().UTC(),
	})

	if conn.UserID != "" {
		online, err := s.connections.IsUserOnline(ctx, conn.UserID)
		if err != nil {
			return true, err
		}
		if !online {
			s.markTransition(ctx, conn.UserID, domain.EventUserDisconnected)
		}
	}
	return true, nil
}

// DisconnectAll asume muertas todas las conexiones registradas. Se usa al
// arrancar el proceso para que las transiciones de presencia queden
// correctas tras un apagado no limpio.
func (s *PresenceService) DisconnectAll(ctx context.Context) error {
	conns, err := s.connections.ListActive(ctx)
	if err != nil {
		return err
	}
	removedIDs, err := s.connections.RemoveAll(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{})
	var userOrder []string
	for _, conn := range conns {
		s.publish(ctx, domain.Event{
			Type:         domain.EventClientDisconnected,
			UserID:       conn.UserID,
			ConnectionID: conn.ID,
			OccurredAt:   now,
		})
		if conn.UserID == "" {
			continue
		}
		if _, ok := seen[conn.UserID]; !ok {
			seen[conn.UserID] = struct{}{}
			userOrder = append(userOrder, conn.UserID)
		}
	}

	for _, userID := range userOrder {
		unlock := s.locks.lock(userID)
		online, err := s.connections.IsUserOnline(ctx, userID)
		if err != nil {
			unlock()
			return err
		}
		if !online {
			s.markTransition(ctx, userID, domain.EventUserDisconnected)
		}
		unlock()
	}

	s.logger.Info("bulk disconnect",
		zap.Int("connections", len(removedIDs)),
		zap.Int("users", len(userOrder)),
	)
	return nil
}

// IsOnline responde si el usuario tiene al menos una conexión activa.
func (s *PresenceService) IsOnline(ctx context.Context, userID string) (bool, error) {
	return s.connections.IsUserOnline(ctx, userID)
}

// markTransition emite el evento de cambio de estado agregado y actualiza
// el last-active del usuario.
func (s *PresenceService) markTransition(ctx context.Context, userID string, evType domain.EventType) {
	now := time.Now().UTC()
	if s.users != nil {
		if err := s.users.UpdateLastActive(ctx, userID, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("update last active failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	s.publish(ctx, domain.Event{
		Type:       evType,
		UserID:     userID,
		OccurredAt: now,
	})
}

func (s *PresenceService) publish(ctx context.Context, ev domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
	}
}
