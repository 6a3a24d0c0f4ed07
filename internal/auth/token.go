package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/FranLegon/mailbox-usage-report/internal/config"
	"golang.org/x/oauth2"
)

// tokenSourceAdapter adapts oauth2.TokenSource to azcore.TokenCredential for the Graph SDK.
type tokenSourceAdapter struct {
	ts oauth2.TokenSource
}

func (t *tokenSourceAdapter) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	token, err := t.ts.Token()
	if err != nil {
		return azcore.AccessToken{}, err
	}
	return azcore.AccessToken{
		Token:     token.AccessToken,
		ExpiresOn: token.Expiry,
	}, nil
}

// NewRefreshTokenCredential returns a credential that refreshes delegated
// access tokens from refreshToken.
func NewRefreshTokenCredential(ctx context.Context, oc *oauth2.Config, refreshToken string) azcore.TokenCredential {
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return &tokenSourceAdapter{ts: oauth2.ReuseTokenSource(nil, ts)}
}

// Credential picks app-only auth when a client secret is configured and
// delegated auth from the stored refresh token otherwise.
func Credential(ctx context.Context, cfg *config.Config) (azcore.TokenCredential, error) {
	if cfg.TenantID == "" || cfg.Client.ID == "" {
		return nil, errors.New("tenant ID and client ID are required")
	}
	if cfg.Client.Secret != "" && cfg.RefreshToken == "" {
		cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.Client.ID, cfg.Client.Secret, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client secret credential: %w", err)
		}
		return cred, nil
	}
	if cfg.RefreshToken == "" {
		return nil, errors.New("no client secret or refresh token configured, run 'login' first")
	}
	oc := OAuthConfig(cfg.TenantID, cfg.Client.ID, cfg.Client.Secret)
	return NewRefreshTokenCredential(ctx, oc, cfg.RefreshToken), nil
}
