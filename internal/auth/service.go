package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

var ErrTokenInvalid = errors.New("token invalid")

// Service issues and checks the bearer tokens that scope requests to one
// workspace.
type Service struct {
	secret []byte
	ttl    time.Duration
}

type Claims struct {
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

func NewService(secret string) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
	}
}

// TTL is how long an issued token stays valid.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) Issue(workspaceID string) (TokenResponse, error) {
	if workspaceID == "" {
		return TokenResponse{}, errors.New("workspace id required")
	}
	token, err := s.signToken(workspaceID, s.ttl)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.ttl.Seconds()),
	}, nil
}

// Validate returns the workspace a token was issued for.
func (s *Service) Validate(token string) (string, error) {
	claims, err := parseClaims(token, s.secret)
	if err != nil {
		return "", err
	}
	return claims.WorkspaceID, nil
}

func (s *Service) signToken(workspaceID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func parseClaims(token string, secret []byte) (*Claims, error) {
	parsed, err := parseClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.WorkspaceID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

var parseClaimsFn = jwt.ParseWithClaims
