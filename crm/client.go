package crm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// Contact is the CRM's representation of a customer
type Contact struct {
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Email     string `json:"Email"`
	Phone     string `json:"Phone"`
}

// NewContact builds a Contact from a full name
func NewContact(name, email, phone string) Contact {
	first, last := SplitName(name)
	return Contact{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Phone:     phone,
	}
}

// ClientOptions contains the configuration for Client
type ClientOptions struct {
	Tokens     TokenSource
	ContactURL string
	QueryURL   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the CRM REST API with tokens from a TokenSource
type Client struct {
	ClientOptions
}

type createResponse struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Errors  []interface{} `json:"errors"`
}

// NewClient returns a new Client for the CRM REST API
func NewClient(option ClientOptions) (*Client, error) {
	if option.Tokens == nil {
		return nil, fmt.Errorf("nil Tokens is invalid")
	}
	if len(option.ContactURL) == 0 {
		return nil, fmt.Errorf("empty ContactURL is invalid")
	}
	if len(option.QueryURL) == 0 {
		return nil, fmt.Errorf("empty QueryURL is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.HTTPClient == nil {
		option.HTTPClient = http.DefaultClient
	}
	return &Client{
		ClientOptions: option,
	}, nil
}

// CreateContact creates contact in the CRM and returns the remote id
func (c *Client) CreateContact(ctx context.Context, contact Contact) (string, error) {
	payload, err := json.Marshal(contact)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot encode contact")
	}

	body, err := c.do(ctx, http.MethodPost, c.ContactURL, payload)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot create contact")
	}

	var created createResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", extErrors.Wrap(err, "Cannot decode create contact response")
	}
	if !created.Success {
		return "", fmt.Errorf("CRM refused contact: %v", created.Errors)
	}
	return created.ID, nil
}

// ListContacts returns the raw result of the configured list query
func (c *Client) ListContacts(ctx context.Context) ([]byte, error) {
	body, err := c.do(ctx, http.MethodGet, c.QueryURL, nil)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot list contacts")
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot get access token")
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot build CRM request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, extErrors.Wrap(err, "CRM request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot read CRM response")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// the token was revoked or expired upstream; the next call re-acquires
		if err := c.Tokens.Invalidate(ctx); err != nil {
			c.Logger.Error("Unable to invalidate CRM access token",
				zap.Error(err),
			)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
