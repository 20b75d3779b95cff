package session

import (
	"golang.org/x/oauth2"

	"github.com/yndnr/authctl/internal/core/domain"
)

// TokenSource exposes the current access token as an oauth2.TokenSource,
// so the session can authorize clients built on golang.org/x/oauth2.
// Rotation stays with the Manager; the source only reads.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return tokenSource{m: m}
}

type tokenSource struct {
	m *Manager
}

// Token implements oauth2.TokenSource.
func (s tokenSource) Token() (*oauth2.Token, error) {
	pair := s.m.Credentials()
	if pair.AccessToken == "" {
		return nil, domain.ErrUnauthenticated
	}

	tok := &oauth2.Token{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
	}
	if exp, ok := pair.AccessExpiry(); ok {
		tok.Expiry = exp
	}
	return tok, nil
}
