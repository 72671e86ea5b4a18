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

var (
	// ErrInvalidToken cubre refresh tokens desconocidos, expirados o ya
	// consumidos por una rotación previa.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthorized indica un access token que no autoriza: firma o
	// expiración inválidas, o sesión padre ya revocada.
	ErrUnauthorized = errors.New("unauthorized")
)

// SessionService orquesta sign-in, sign-up, refresh y sign-out combinando
// el codec de tokens y el store de sesiones. La rotación usa el borrado por
// token exacto como compare-and-swap: de dos refresh concurrentes con el
// mismo token solo gana el primero.
type SessionService struct {
	logger      *zap.Logger
	users       *UserService
	sessions    repository.SessionRepository
	tokens      *TokenService
	publisher   event.Publisher
	maxSessions int
	locks       *userLocks
}

func NewSessionService(
	logger *zap.Logger,
	users *UserService,
	sessions repository.SessionRepository,
	tokens *TokenService,
	publisher event.Publisher,
	maxSessions int,
) *SessionService {
	return &SessionService{
		logger:      logger,
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		publisher:   publisher,
		maxSessions: maxSessions,
		locks:       newUserLocks(),
	}
}

// SignUp registra un usuario y emite su primera sesión.
func (s *SessionService) SignUp(ctx context.Context, input RegisterInput) (domain.User, domain.Session, error) {
	user, err := s.users.Register(ctx, input)
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}
	sess, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}
	return user, sess, nil
}

// SignIn autentica credenciales y emite una sesión nueva.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (domain.User, domain.Session, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}
	sess, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}
	return user, sess, nil
}

// IssueSession crea y almacena una sesión nueva para un usuario ya
// autenticado, aplicando el tope de sesiones concurrentes.
func (s *SessionService) IssueSession(ctx context.Context, userID string) (domain.Session, error) {
	unlock := s.locks.lock(userID)
	defer unlock()
	return s.issueSessionLocked(ctx, userID)
}

// Refresh rota la sesión identificada por el refresh token: el token viejo
// queda inutilizable aunque no haya expirado.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return domain.Session{}, ErrInvalidToken
	}

	unlock := s.locks.lock(claims.UserID)
	defer unlock()

	removed, err := s.sessions.RemoveByRefreshToken(ctx, refreshToken)
	if err != nil {
		return domain.Session{}, err
	}
	if !removed {
		return domain.Session{}, ErrInvalidToken
	}

	return s.issueSessionLocked(ctx, claims.UserID)
}

// SignOut revoca la sesión del refresh token si existe. Idempotente:
// cerrar sesión dos veces no es un error.
func (s *SessionService) SignOut(ctx context.Context, refreshToken string) error {
	sess, err := s.sessions.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	unlock := s.locks.lock(sess.UserID)
	defer unlock()

	removed, err := s.sessions.RemoveByRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if removed {
		s.publish(ctx, domain.Event{
			Type:       domain.EventSessionRevoked,
			UserID:     sess.UserID,
			SessionID:  sess.ID,
			OccurredAt: time.Now().UTC(),
		})
	}
	return nil
}

// SignOutAll revoca todas las sesiones del usuario y devuelve cuántas.
func (s *SessionService) SignOutAll(ctx context.Context, userID string) (int, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	removed, err := s.sessions.RemoveAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	for _, sess := range removed {
		s.publish(ctx, domain.Event{
			Type:       domain.EventSessionRevoked,
			UserID:     sess.UserID,
			SessionID:  sess.ID,
			OccurredAt: now,
		})
	}
	return len(removed), nil
}

// ValidateAccess verifica un access token y confirma que su sesión padre
// sigue viva: un access token deja de valer en cuanto la sesión se revoca,
// aunque no haya alcanzado su expiración natural.
func (s *SessionService) ValidateAccess(ctx context.Context, accessToken string) (TokenClaims, error) {
	claims, err := s.tokens.Verify(accessToken, TokenKindAccess)
	if err != nil {
		return TokenClaims{}, ErrUnauthorized
	}
	exists, err := s.sessions.ExistsByID(ctx, claims.SessionID)
	if err != nil {
		return TokenClaims{}, err
	}
	if !exists {
		return TokenClaims{}, ErrUnauthorized
	}
	return claims, nil
}

// issueSessionLocked emite el par de tokens y persiste la sesión. Requiere
// el lock del usuario tomado: el chequeo del tope y el insert deben ser una
// sola operación frente a sign-ins concurrentes del mismo usuario.
func (s *SessionService) issueSessionLocked(ctx context.Context, userID string) (domain.Session, error) {
	sessionID := uuid.NewString()

	accessToken, accessExp, err := s.tokens.Issue(userID, sessionID, TokenKindAccess)
	if err != nil {
		return domain.Session{}, err
	}
	refreshToken, refreshExp, err := s.tokens.Issue(userID, sessionID, TokenKindRefresh)
	if err != nil {
		return domain.Session{}, err
	}

	if err := s.evictOverCapLocked(ctx, userID); err != nil {
		return domain.Session{}, err
	}

	sess := domain.Session{
		ID:               sessionID,
		UserID:           userID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.sessions.Add(ctx, sess); err != nil {
		return domain.Session{}, err
	}

	s.publish(ctx, domain.Event{
		Type:       domain.EventSessionCreated,
		UserID:     userID,
		SessionID:  sessionID,
		OccurredAt: sess.CreatedAt,
	})
	return sess, nil
}

// evictOverCapLocked desaloja sesiones FIFO hasta dejar lugar para una
// nueva. Requiere el lock del usuario tomado.
func (s *SessionService) evictOverCapLocked(ctx context.Context, userID string) error {
	if s.maxSessions <= 0 {
		return nil
	}
	for {
		count, err := s.sessions.CountActive(ctx, userID)
		if err != nil {
			return err
		}
		if count < s.maxSessions {
			return nil
		}
		oldest, err := s.sessions.OldestByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		removed, err := s.sessions.RemoveByRefreshToken(ctx, oldest.RefreshToken)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		s.publish(ctx, domain.Event{
			Type:       domain.EventSessionRevoked,
			UserID:     userID,
			SessionID:  oldest.ID,
			OccurredAt: time.Now().UTC(),
		})
	}
}

// publish entrega un evento sin bloquear la operación: un fallo del
// publisher se loguea y no revierte la mutación ya confirmada.
func (s *SessionService) publish(ctx context.Context, ev domain.Event) {
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
