package crm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenTTL applies when the issuer does not report expires_in
	DefaultTokenTTL = time.Hour

	expirySkew   = 30 * time.Second
	grantTimeout = 30 * time.Second
	maxBodyBytes = 1 << 20
	flightKey    = "access_token"
)

// Token is a bearer token issued by the client-credentials grant
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the token is usable at now, leaving room for clock skew
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.Value == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(expirySkew).Before(t.ExpiresAt)
}

// TokenSource is what the Client needs from a TokenProvider
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// TokenProviderOptions contains the configuration for TokenProvider
type TokenProviderOptions struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// DefaultTTL is used when the grant response carries no expires_in
	DefaultTTL time.Duration
	HTTPClient *http.Client
	Cache      TokenCache
	Logger     *zap.Logger
}

// TokenProvider obtains and caches access tokens. Concurrent callers that
// miss the cache share a single in-flight grant request.
type TokenProvider struct {
	TokenProviderOptions
	group singleflight.Group
	now   func() time.Time
}

var _ TokenSource = &TokenProvider{}

type grantResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	InstanceURL string `json:"instance_url"`
	IssuedAt    string `json:"issued_at"`
}

// NewTokenProvider returns a TokenProvider for the client-credentials grant
func NewTokenProvider(option TokenProviderOptions) (*TokenProvider, error) {
	if len(option.TokenURL) == 0 {
		return nil, fmt.Errorf("empty TokenURL is invalid")
	}
	if len(option.ClientID) == 0 {
		return nil, fmt.Errorf("empty ClientID is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.HTTPClient == nil {
		option.HTTPClient = http.DefaultClient
	}
	if option.Cache == nil {
		option.Cache = NewMemoryCache()
	}
	if option.DefaultTTL <= 0 {
		option.DefaultTTL = DefaultTokenTTL
	}
	return &TokenProvider{
		TokenProviderOptions: option,
		now:                  time.Now,
	}, nil
}

// Token returns the cached access token, performing a grant request if the
// cache is empty or the token is about to expire
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if tok := p.cached(ctx); tok != nil {
		return tok.Value, nil
	}

	// the grant is shared, so it must not die with whichever caller started it
	ch := p.group.DoChan(flightKey, func() (interface{}, error) {
		grantCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grantTimeout)
		defer cancel()

		// another flight may have filled the cache while we were waiting
		if tok := p.cached(grantCtx); tok != nil {
			return tok, nil
		}
		tok, err := p.grant(grantCtx)
		if err != nil {
			return nil, err
		}
		if err := p.Cache.Set(grantCtx, tok); err != nil {
			p.Logger.Warn("Unable to cache CRM access token",
				zap.Error(err),
			)
		}
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", extErrors.Wrap(ctx.Err(), "Cannot wait for access token")
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*Token).Value, nil
	}
}

// Invalidate drops the cached token so the next call to Token performs a new grant
func (p *TokenProvider) Invalidate(ctx context.Context) error {
	if err := p.Cache.Delete(ctx); err != nil {
		return extErrors.Wrap(err, "Cannot invalidate cached token")
	}
	return nil
}

func (p *TokenProvider) cached(ctx context.Context) *Token {
	tok, err := p.Cache.Get(ctx)
	if err != nil {
		p.Logger.Warn("Unable to read cached CRM access token",
			zap.Error(err),
		)
		return nil
	}
	if !tok.Valid(p.now()) {
		return nil
	}
	return tok
}

func (p *TokenProvider) grant(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot request access token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot read token response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, extErrors.Wrap(&APIError{StatusCode: resp.StatusCode, Body: string(body)}, "Token endpoint rejected the grant")
	}

	var g grantResponse
	if err := json.Unmarshal(body, &g); err != nil {
		return nil, extErrors.Wrap(err, "Cannot decode token response")
	}
	if g.AccessToken == "" {
		return nil, fmt.Errorf("Token response has no access_token")
	}

	ttl := p.DefaultTTL
	if g.ExpiresIn > 0 {
		ttl = time.Duration(g.ExpiresIn) * time.Second
	}

	p.Logger.Info("Acquired CRM access token",
		zap.Duration("ttl", ttl),
	)

	return &Token{
		Value:     g.AccessToken,
		ExpiresAt: p.now().Add(ttl),
	}, nil
}
