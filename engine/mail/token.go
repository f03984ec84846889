package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// graphScope is the Microsoft Graph default scope for client-credential
// (application-permission) flows.
const graphScope = "https://graph.microsoft.com/.default"

// TokenSource yields a bearer token for authenticating Graph API calls.
// Implementations are expected to cache and refresh internally.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AzureTokenSource obtains tokens via an Azure AD client-credential flow
// and caches them until shortly before expiry.
type AzureTokenSource struct {
	cred *azidentity.ClientSecretCredential

	mu      sync.Mutex
	cached  string
	expires time.Time
}

// NewAzureTokenSource builds an AzureTokenSource from an app registration's
// tenant/client/secret triple.
func NewAzureTokenSource(tenantID, clientID, clientSecret string) (*AzureTokenSource, error) {
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("mail: build client secret credential: %w", err)
	}
	return &AzureTokenSource{cred: cred}, nil
}

// Token returns a cached token if it has more than a minute left, otherwise
// requests a fresh one.
func (a *AzureTokenSource) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != "" && time.Until(a.expires) > time.Minute {
		return a.cached, nil
	}

	tok, err := a.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{graphScope}})
	if err != nil {
		return "", fmt.Errorf("mail: acquire token: %w", err)
	}
	a.cached = tok.Token
	a.expires = tok.ExpiresOn
	return a.cached, nil
}

// StaticTokenSource returns a fixed token, for tests and for the
// authorization-code bootstrap flow where a token was already exchanged
// out of band.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}
