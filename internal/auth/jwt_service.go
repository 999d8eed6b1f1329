package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid session token")

// Claims represents the session cookie claims. ID (jti) is the server-side
// session id; Subject is the user id.
type Claims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// Session is an established login bound to one user.
type Session struct {
	ID        string
	UserID    uint
	Token     string
	ExpiresAt time.Time
}

// JWTService signs and validates session tokens.
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTService creates a new JWT service with the given secret and session lifetime.
func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL is the lifetime of issued sessions.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Secret returns the signing key, for transport middleware that validates tokens itself.
func (s *JWTService) Secret() []byte {
	return s.secret
}

// IssueSession creates a new session id for the user and signs it.
func (s *JWTService) IssueSession(userID uint) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        generateSessionID(),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
	}
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	sess.Token = token
	return sess, nil
}

// ParseSession validates a token string and returns its session.
func (s *JWTService) ParseSession(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return SessionFromClaims(claims, tokenString)
}

// SessionFromClaims converts already validated claims into a Session.
func SessionFromClaims(claims *Claims, tokenString string) (*Session, error) {
	if claims == nil || claims.ID == "" || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	sess := &Session{ID: claims.ID, UserID: claims.UserID, Token: tokenString}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// generateSessionID generates a unique session id.
func generateSessionID() string {
	return uuid.New().String()
}
