package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aistrack/platform/pkg/common/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials describes an OAuth2 client credentials grant used to
// authenticate outbound lookups.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (c ClientCredentials) Enabled() bool {
	return c.TokenURL != ""
}

// Wrap returns a client that attaches bearer tokens obtained with the grant.
// base is used both for token requests and for the wrapped calls; its timeout
// is kept.
func (c ClientCredentials) Wrap(ctx context.Context, base *http.Client) (*http.Client, error) {
	if !c.Enabled() {
		return base, nil
	}
	if c.ClientID == "" {
		return nil, fmt.Errorf("oauth2 client credentials: client id required for %s", c.TokenURL)
	}

	conf := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
		AuthStyle:    oauth2.AuthStyleAutoDetect,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := conf.Client(ctx)
	client.Timeout = base.Timeout

	logger.WithField("token_url", c.TokenURL).Info("Outbound lookups use OAuth2 client credentials")
	return client, nil
}
