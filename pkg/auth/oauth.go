package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/harrisonrobin/ganttbridge/pkg/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenURLFormat is the Microsoft identity platform v2 token endpoint for a tenant.
const TokenURLFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

// Scope is the application scope granting access to a Dataverse environment.
func Scope(environmentURL string) string {
	return strings.TrimRight(environmentURL, "/") + "/.default"
}

// GetConfig builds the client-credentials configuration for cfg.
func GetConfig(cfg *config.Config) (*clientcredentials.Config, error) {
	if cfg.TenantID == "" && cfg.TokenURL == "" {
		return nil, fmt.Errorf("tenant_id or token_url is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client_id and client_secret are required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf(TokenURLFormat, cfg.TenantID)
	}
	return &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{Scope(cfg.EnvironmentURL)},
	}, nil
}

// TokenSource returns a caching token source for the data service. A
// configured access token is used as is.
func TokenSource(ctx context.Context, cfg *config.Config) (oauth2.TokenSource, error) {
	if cfg.AccessToken != "" {
		log.Warn("Using static access token from configuration; it will not be refreshed.")
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"}), nil
	}
	cc, err := GetConfig(cfg)
	if err != nil {
		return nil, err
	}
	// clientcredentials caches the token and fetches a new one on expiry.
	return cc.TokenSource(ctx), nil
}

// GetClient returns an *http.Client that authenticates every request.
func GetClient(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	ts, err := TokenSource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build token source: %w", err)
	}
	return oauth2.NewClient(ctx, ts), nil
}

// Check fetches one token so misconfiguration surfaces before serving.
func Check(ctx context.Context, cfg *config.Config) (*oauth2.Token, error) {
	ts, err := TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token: %w", err)
	}
	return tok, nil
}
