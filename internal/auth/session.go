package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	Role    models.Role `json:"role"`
	OwnerID *uint       `json:"owner_id,omitempty"`
	jwt.RegisteredClaims
}

// CredentialID returns the numeric subject of the token.
func (c *Claims) CredentialID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.ErrUnauthenticated
	}
	return uint(id), nil
}

type Session struct {
	Token     string      `json:"token"`
	SubjectID uint        `json:"id"`
	Role      models.Role `json:"role"`
	OwnerID   *uint       `json:"owner_id,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Issuer signs and parses HS256 session tokens.
type Issuer struct {
	creds  *CredentialService
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(creds *CredentialService, secret string, ttl time.Duration) *Issuer {
	return &Issuer{creds: creds, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Login verifies the pair and issues a session for the credential.
func (i *Issuer) Login(ctx context.Context, username, password string) (*Session, *models.Credential, error) {
	cred, err := i.creds.Verify(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	sess, err := i.Issue(cred)
	if err != nil {
		return nil, nil, err
	}
	return sess, cred, nil
}

func (i *Issuer) Issue(cred *models.Credential) (*Session, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := &Claims{
		Role:    cred.Role,
		OwnerID: cred.OwnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(cred.ID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{
		Token:     token,
		SubjectID: cred.ID,
		Role:      cred.Role,
		OwnerID:   cred.OwnerID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Parse checks signature, algorithm and expiry. Every failure is
// apperrors.ErrUnauthenticated.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, apperrors.ErrUnauthenticated
	}
	if claims.ID == "" || !claims.Role.Valid() {
		return nil, apperrors.ErrUnauthenticated
	}
	return claims, nil
}
