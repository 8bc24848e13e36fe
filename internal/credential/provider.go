package credential

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"ytrelay/pkg/httputil"
)

// UploadScope is the only scope the gateway needs.
const UploadScope = "https://www.googleapis.com/auth/youtube.upload"

// Provider is the identity provider side of the credential lifecycle.
type Provider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type ProviderOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint
	Timeout  time.Duration
}

// OAuthProvider talks to an OAuth2 token endpoint with golang.org/x/oauth2.
type OAuthProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

var _ Provider = (*OAuthProvider)(nil)

func NewOAuthProvider(opts ProviderOptions) *OAuthProvider {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{UploadScope}
	}

	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
			RedirectURL:  opts.RedirectURL,
		},
		httpClient: httputil.NewClient(opts.Timeout),
	}
}

// AuthCodeURL asks for offline access and forces the consent screen so the
// provider hands out a refresh token on every exchange.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(p.withClient(ctx), code)
}

func (p *OAuthProvider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := p.config.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

func (p *OAuthProvider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// refreshRejected reports whether the token endpoint refused the refresh
// token itself, as opposed to failing for a transient reason.
func refreshRejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	if re.ErrorCode == "invalid_grant" {
		return true
	}
	if re.Response == nil {
		return false
	}
	return re.Response.StatusCode == http.StatusBadRequest || re.Response.StatusCode == http.StatusUnauthorized
}
