package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discrimina tokens de acceso y de refresh. El discriminante va
// firmado dentro del payload, de modo que el mal uso lo rechaza el codec y
// no la disciplina del caller.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

var (
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenWrongKind = errors.New("token kind mismatch")
)

// TokenClaims son los claims firmados de un token emitido por el codec.
type TokenClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService emite y verifica tokens firmados ligados a un usuario y una
// sesión. Es puro sobre el secreto de firma cargado al arranque.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     "presence-auth",
	}
}

// AccessTTL expone la vigencia configurada para tokens de acceso.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL expone la vigencia configurada para tokens de refresh.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue produce un token firmado del tipo pedido y devuelve su expiración.
func (s *TokenService) Issue(userID, sessionID string, kind TokenKind) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrTokenInvalid
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
		return "", time.Time{}, ErrTokenInvalid
	}

	ttl := s.accessTTL
	if kind == TokenKindRefresh {
		ttl = s.refreshTTL
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := TokenClaims{
		UserID:    userID,
		SessionID: sessionID,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify valida firma, expiración y tipo. Devuelve ErrTokenWrongKind si el
// token es válido pero del tipo contrario al esperado.
func (s *TokenService) Verify(tokenString string, expected TokenKind) (TokenClaims, error) {
	if len(s.secret) == 0 {
		return TokenClaims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return TokenClaims{}, ErrTokenInvalid
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return TokenClaims{}, err
	}
	if !s.isValidClaims(claims) {
		return TokenClaims{}, ErrTokenInvalid
	}
	if claims.TokenType != string(expected) {
		return TokenClaims{}, ErrTokenWrongKind
	}
	return claims, nil
}

func (s *TokenService) parseToken(tokenString string) (TokenClaims, error) {
	var claims TokenClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) isValidClaims(claims TokenClaims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if strings.TrimSpace(claims.SessionID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
