// Package api talks to the signaling server's REST endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/1ureka/roomcall/internal/signaling"
)

var (
	ErrInvalidHost     = errors.New("invalid host")
	ErrInvalidResponse = errors.New("invalid response")
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 64 * 1024

// TURNCredentials are short-lived relay credentials.
type TURNCredentials struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	URIs     []string `json:"uris"`
	TTL      int      `json:"ttl"`
}

// Client is a thin REST client. It is safe for concurrent use.
type Client struct {
	http *http.Client
}

// New returns a client. A nil httpClient gets a 10 second timeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{http: httpClient}
}

// CreateRoomID asks host to mint a new room id.
func (c *Client) CreateRoomID(ctx context.Context, host string) (string, error) {
	u, err := buildURL(host, "/api/room-id", nil)
	if err != nil {
		return "", err
	}
	var body struct {
		RoomID string `json:"roomId"`
	}
	if err := c.do(ctx, http.MethodPost, u, "room id request", &body); err != nil {
		return "", err
	}
	if strings.TrimSpace(body.RoomID) == "" {
		return "", fmt.Errorf("room id missing in response: %w", ErrInvalidResponse)
	}
	return body.RoomID, nil
}

// ValidateHost checks that host runs a compatible server.
func (c *Client) ValidateHost(ctx context.Context, host string) error {
	u, err := buildURL(host, "/api/room-id", nil)
	if err != nil {
		return err
	}
	var body struct {
		RoomID string `json:"roomId"`
	}
	if err := c.do(ctx, http.MethodGet, u, "host validation", &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.RoomID) == "" {
		return fmt.Errorf("room id missing in response: %w", ErrInvalidResponse)
	}
	return nil
}

// TURNCredentials redeems a turn token handed out with joined.
func (c *Client) TURNCredentials(ctx context.Context, host, token string) (TURNCredentials, error) {
	u, err := buildURL(host, "/api/turn-credentials", url.Values{"token": {token}})
	if err != nil {
		return TURNCredentials{}, err
	}
	var creds TURNCredentials
	if err := c.do(ctx, http.MethodGet, u, "TURN credentials", &creds); err != nil {
		return TURNCredentials{}, err
	}

	uris := creds.URIs[:0]
	for _, uri := range creds.URIs {
		if strings.TrimSpace(uri) != "" {
			uris = append(uris, uri)
		}
	}
	creds.URIs = uris
	if creds.Username == "" || creds.Password == "" || len(creds.URIs) == 0 {
		return TURNCredentials{}, fmt.Errorf("incomplete TURN credentials: %w", ErrInvalidResponse)
	}
	return creds, nil
}

func (c *Client) do(ctx context.Context, method, u, what string, out any) error {
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s failed: %d", what, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("%s: %w", what, ErrInvalidResponse)
	}
	return nil
}

func buildURL(host, path string, query url.Values) (string, error) {
	ep, ok := signaling.ParseEndpoint(host)
	if !ok {
		return "", ErrInvalidHost
	}
	u, err := url.Parse(ep.HTTPBase())
	if err != nil || u.Host == "" {
		return "", ErrInvalidHost
	}
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String(), nil
}
