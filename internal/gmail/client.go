package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Sender delivers a message using the user's access token.
type Sender interface {
	Send(ctx context.Context, accessToken string, msg *Message) (messageID string, err error)
}

// DeliveryError is a rejection from the mail API.
type DeliveryError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mail API returned %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Client sends mail through the Gmail API users.messages.send call.
type Client struct {
	endpoint  string
	transport http.RoundTripper
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at a different API root (tests, proxies).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithTransport sets the base transport under the OAuth2 transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// NewClient creates a Gmail sender.
func NewClient(opts ...Option) *Client {
	c := &Client{timeout: 30 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send builds the MIME message, encodes it and sends it as the user "me".
func (c *Client) Send(ctx context.Context, accessToken string, msg *Message) (string, error) {
	mimeMessage, err := BuildMIME(msg, c.now())
	if err != nil {
		return "", err
	}

	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	sent, err := svc.Users.Messages.Send("me", &gmail.Message{Raw: EncodeRaw(mimeMessage)}).Context(ctx).Do()
	if err != nil {
		return "", deliveryError(err)
	}
	return sent.Id, nil
}

func (c *Client) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	httpClient := &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

func deliveryError(err error) *DeliveryError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Body
		}
		return &DeliveryError{StatusCode: apiErr.Code, Message: msg, Err: err}
	}
	return &DeliveryError{Message: err.Error(), Err: err}
}
