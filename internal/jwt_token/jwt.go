package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
)

// Claims binds an identity to the wizard session it linked in.
type Claims struct {
	IdentityID string `json:"identity_id"`
	SessionID  string `json:"session_id"`
	jwt.RegisteredClaims
}

// JWTService signs and checks the HS256 access tokens handed out once an
// identity is linked.
type JWTService struct {
	key    []byte
	issuer string
	aud    string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewJWTService(signingKey, issuer, audience string, ttl time.Duration) *JWTService {
	s := &JWTService{key: []byte(signingKey), issuer: issuer, aud: audience, ttl: ttl, now: time.Now}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

// IssueAccessToken returns a signed token for the pair and the instant it
// stops being accepted.
func (s *JWTService) IssueAccessToken(identityID id.IdentityID, sessionID id.SessionID) (string, time.Time, error) {
	issued := s.now()
	expires := issued.Add(s.ttl)
	claims := Claims{IdentityID: identityID.String(), SessionID: sessionID.String()}
	claims.Subject = identityID.String()
	claims.Issuer = s.issuer
	claims.Audience = jwt.ClaimStrings{s.aud}
	claims.IssuedAt = jwt.NewNumericDate(issued)
	claims.ExpiresAt = jwt.NewNumericDate(expires)
	claims.ID = uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign access token")
	}
	return signed, expires, nil
}

// ValidateToken parses raw and checks signature, issuer, audience and expiry.
// Every failure is CodeUnauthorized.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.key, nil })
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}
