// Package jwttoken issues and validates reviewer access tokens. Approve and
// modify are reviewer actions; extraction uploads stay unauthenticated.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"docextract/pkg/domerr"
)

// Claims carried by a reviewer access token.
type Claims struct {
	ReviewerID string `json:"reviewer_id"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Service handles token creation and validation with a shared HMAC key.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

func (s *Service) GenerateToken(reviewerID, email string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ReviewerID: reviewerID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domerr.New(domerr.CodeUnauthorized, "token has expired")
		}
		return nil, domerr.New(domerr.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, domerr.New(domerr.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.ReviewerID == "" {
		return nil, domerr.New(domerr.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
