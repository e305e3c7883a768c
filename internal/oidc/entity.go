package oidc

import (
	"time"

	"golang.org/x/oauth2"
)

// Claims are the identity fields kept from the id_token.
type Claims struct {
	Sub             string `json:"sub"`
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	Exp             int64  `json:"exp,omitempty"`
}

// Session is the payload stored in sessions.sess.
type Session struct {
	Claims       Claims    `json:"claims"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	TokenExpiry  time.Time `json:"token_expiry"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Session) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.TokenExpiry,
	}
}

func (s *Session) setToken(t *oauth2.Token) {
	s.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		s.RefreshToken = t.RefreshToken
	}
	s.TokenType = t.TokenType
	s.TokenExpiry = t.Expiry
}
