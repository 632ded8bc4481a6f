package provider

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"tracker_server/core/port/out"
)

// GoogleIdentity resolves the signed-in profile through the userinfo API.
type GoogleIdentity struct {
	endpoint string
	client   *http.Client
}

// NewGoogleIdentity creates an identity provider. Options are shared with
// the Gmail adapter.
func NewGoogleIdentity(opts ...GmailOption) *GoogleIdentity {
	var cfg GmailAdapter
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GoogleIdentity{endpoint: cfg.endpoint, client: cfg.client}
}

func (g *GoogleIdentity) FetchIdentity(ctx context.Context, token *oauth2.Token) (*out.Identity, error) {
	opts := []option.ClientOption{}
	if g.client != nil {
		opts = append(opts, option.WithHTTPClient(g.client))
	} else {
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}

	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, out.NewProviderError("google", out.ProviderErrNetwork, "failed to create userinfo service", err, true)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "failed to fetch user info")
	}

	return &out.Identity{
		Subject: info.Id,
		Email:   info.Email,
		Name:    info.Name,
	}, nil
}

var _ out.IdentityProvider = (*GoogleIdentity)(nil)
