package configuration

import (
	"context"
	"fmt"
	"sort"

	"helpdesk/internal/models"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Provider is a ready-to-use authentication provider. OIDC fields are nil for
// the local provider.
type Provider struct {
	Name        string
	Type        models.ProviderType
	Domains     []string
	Order       int
	Provider    *oidc.Provider
	Verifier    *oidc.IDTokenVerifier
	OauthConfig *oauth2.Config
}

type Providers map[string]Provider

// LoadProviders builds the provider map from configuration. OIDC discovery
// happens at startup; a provider that cannot be reached is fatal because auth
// would be silently broken otherwise.
func LoadProviders(
	ctx context.Context,
	apiURL string,
	configs map[string]models.ProviderConfiguration,
) Providers {
	providers := make(Providers, len(configs))

	keys := make([]string, 0, len(configs))
	for key := range configs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for order, key := range keys {
		config := configs[key]

		provider := Provider{
			Name:    config.Name,
			Type:    config.Type,
			Domains: config.Domains,
			Order:   order,
		}

		if config.Type == models.OIDCProviderType {
			oidcProvider, err := oidc.NewProvider(ctx, config.OIDC.Issuer)
			if err != nil {
				zap.L().Fatal("Failed to discover OIDC provider",
					zap.String("provider", key),
					zap.String("issuer", config.OIDC.Issuer),
					zap.Error(err))
			}

			provider.Provider = oidcProvider
			provider.Verifier = oidcProvider.Verifier(&oidc.Config{ClientID: config.OIDC.ClientID})
			provider.OauthConfig = &oauth2.Config{
				ClientID:     config.OIDC.ClientID,
				ClientSecret: config.OIDC.ClientSecret,
				Endpoint:     oidcProvider.Endpoint(),
				RedirectURL:  fmt.Sprintf("%s/api/v1/auth/providers/%s/callback", apiURL, key),
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			}
		}

		providers[key] = provider

		zap.L().Info("Loaded auth provider",
			zap.String("provider", key),
			zap.String("type", string(config.Type)))
	}

	return providers
}
