package domain

// Response headers used by the server to hand out rotated credentials on
// any authenticated call.
const (
	HeaderTokenRefreshed  = "X-Token-Refreshed"
	HeaderNewAccessToken  = "X-New-Access-Token"
	HeaderNewRefreshToken = "X-New-Refresh-Token"
)

// TokenPair is the wire form of a credential pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Credentials converts the wire pair into a CredentialPair.
func (t TokenPair) Credentials() CredentialPair {
	return CredentialPair{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}

// Envelope is the API response shape: {"code": ..., "msg": ..., "data": {...}}.
type Envelope struct {
	Code int            `json:"code,omitempty"`
	Msg  string         `json:"msg,omitempty"`
	Data map[string]any `json:"data"`
}

// Tokens returns data.tokens, carried by login and refresh responses.
func (e *Envelope) Tokens() (TokenPair, bool) {
	if e == nil || e.Data == nil {
		return TokenPair{}, false
	}
	return tokenPairFrom(e.Data["tokens"])
}

// RefreshedTokens returns data.new_tokens when the envelope reports
// data.token_refreshed == true.
func (e *Envelope) RefreshedTokens() (TokenPair, bool) {
	if e == nil || e.Data == nil {
		return TokenPair{}, false
	}
	if refreshed, _ := e.Data["token_refreshed"].(bool); !refreshed {
		return TokenPair{}, false
	}
	return tokenPairFrom(e.Data["new_tokens"])
}

func tokenPairFrom(v any) (TokenPair, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return TokenPair{}, false
	}
	access, _ := m["access_token"].(string)
	refresh, _ := m["refresh_token"].(string)
	if access == "" || refresh == "" {
		return TokenPair{}, false
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, true
}
