package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// CredentialProvider supplies the bearer token for remote calls.
//
// The engine asks for a token before every remote operation; a failure here
// is surfaced as an auth error and is the UI's cue to prompt
// re-authentication. The engine never retries auth itself.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a CredentialProvider returning a fixed bearer token.
// Useful for tests and for tokens managed outside the process.
type StaticToken string

// Token implements CredentialProvider.
func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no token configured")
	}
	return string(s), nil
}

// MicrosoftEndpoint returns the Microsoft identity platform OAuth2
// endpoints for the given tenant ("common" for multi-tenant apps).
func MicrosoftEndpoint(tenant string) oauth2.Endpoint {
	if tenant == "" {
		tenant = "common"
	}
	base := "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:  base + "/authorize",
		TokenURL: base + "/token",
	}
}

// OAuthConfig returns the oauth2 client configuration for the Microsoft
// To Do scopes.
func OAuthConfig(clientID, tenant string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Endpoint: MicrosoftEndpoint(tenant),
		Scopes:   []string{"Tasks.ReadWrite", "User.Read", "offline_access"},
	}
}

// OAuthProvider is a CredentialProvider backed by an oauth2 token source.
// Expired access tokens are refreshed transparently; refreshed tokens are
// written back to the token file so the next process start reuses them.
//
// Token is safe for concurrent use: the engine's full refresh fans out one
// goroutine per container and each remote call asks for a token.
type OAuthProvider struct {
	src       oauth2.TokenSource
	tokenFile string

	mu   sync.Mutex
	last string
}

// NewOAuthProvider creates a provider from the OAuth2 config and a
// previously obtained token (typically loaded with LoadToken). tokenFile
// may be empty to disable write-back.
func NewOAuthProvider(cfg *oauth2.Config, tok *oauth2.Token, tokenFile string) *OAuthProvider {
	return &OAuthProvider{
		src:       cfg.TokenSource(context.Background(), tok),
		tokenFile: tokenFile,
	}
}

// Token implements CredentialProvider.
func (p *OAuthProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.src.Token()
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}
	if p.tokenFile != "" {
		p.mu.Lock()
		if tok.AccessToken != p.last {
			p.last = tok.AccessToken
			if err := SaveToken(p.tokenFile, tok); err != nil {
				// Write-back failure is not fatal; the token is still usable.
				fmt.Fprintf(os.Stderr, "Warning: failed to save refreshed token: %v\n", err)
			}
		}
		p.mu.Unlock()
	}
	return tok.AccessToken, nil
}

// LoadToken reads an oauth2.Token from a JSON file.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes an oauth2.Token to a JSON file, creating the parent
// directory if needed. The file is owner-readable only.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", path, err)
	}
	return nil
}
