package jwttoken

import (
	authmw "clocklayer/pkg/platform/middleware/auth"
)

type middlewareValidator struct {
	tokens *JWTService
}

// Validator returns the service narrowed to the auth middleware's port.
func (s *JWTService) Validator() authmw.JWTValidator {
	return middlewareValidator{tokens: s}
}

func (v middlewareValidator) ValidateToken(raw string) (*authmw.JWTClaims, error) {
	c, err := v.tokens.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{IdentityID: c.IdentityID, SessionID: c.SessionID}, nil
}
