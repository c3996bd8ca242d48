// Package apiclient is a typed client for the fleet dashboard REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/fleet-dashboard/internal/models"
	"github.com/ukydev/fleet-dashboard/internal/share"
)

const DefaultBaseURL = "http://localhost:8080/api"

// Error is returned for any failed call. It unwraps to models.ErrUnauthorized,
// models.ErrNotFound or models.ErrUpstream.
type Error struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api request failed: %s", e.Message)
	}
	return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.kind
}

func newError(status int, message string) *Error {
	kind := models.ErrUpstream
	switch status {
	case http.StatusUnauthorized:
		kind = models.ErrUnauthorized
	case http.StatusNotFound:
		kind = models.ErrNotFound
	}
	if message == "" {
		message = "API request failed"
	}
	return &Error{StatusCode: status, Message: message, kind: kind}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// Client talks to the API. It keeps the bearer token returned by Login or
// Register and sends it on later calls. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for baseURL, e.g. http://localhost:8080/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromEnv creates a client for NEXT_PUBLIC_API_URL, or DefaultBaseURL.
func NewFromEnv(opts ...Option) *Client {
	base := os.Getenv("NEXT_PUBLIC_API_URL")
	if base == "" {
		base = DefaultBaseURL
	}
	return New(base, opts...)
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		c.SetToken(resp.Token)
	}
	return &resp, nil
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, email, password, name string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	req := models.RegisterRequest{Email: email, Password: password, Name: name}
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		c.SetToken(resp.Token)
	}
	return &resp, nil
}

// Logout ends the server session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

// Verify returns the session behind the current token.
func (c *Client) Verify(ctx context.Context) (*models.SessionData, error) {
	var session models.SessionData
	if err := c.do(ctx, http.MethodGet, "/auth/verify", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ResetPassword changes the current user's password.
func (c *Client) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", req, nil)
}

func (c *Client) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	if err := c.do(ctx, http.MethodGet, "/vehicles", nil, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (c *Client) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := c.do(ctx, http.MethodGet, "/vehicles/"+url.PathEscape(id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := c.do(ctx, http.MethodGet, "/vehicles/vin/"+url.PathEscape(vin), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) CreateVehicle(ctx context.Context, input models.VehicleInput) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := c.do(ctx, http.MethodPost, "/vehicles", input, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) UpdateVehicle(ctx context.Context, id string, patch models.VehiclePatch) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := c.do(ctx, http.MethodPut, "/vehicles/"+url.PathEscape(id), patch, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) DeleteVehicle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/vehicles/"+url.PathEscape(id), nil, nil)
}

// ShareVehicle issues a read-only link for a vehicle.
func (c *Client) ShareVehicle(ctx context.Context, vehicleID string) (*share.Link, error) {
	var link share.Link
	body := map[string]string{"vehicleId": vehicleID}
	if err := c.do(ctx, http.MethodPost, "/vehicles/share", body, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// Stats returns the dashboard summary.
func (c *Client) Stats(ctx context.Context) (*models.FleetStats, error) {
	var stats models.FleetStats
	if err := c.do(ctx, http.MethodGet, "/vehicles/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Message: err.Error(), kind: models.ErrUpstream}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: err.Error(), kind: models.ErrUpstream}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = apiErr.Message
		}
		return newError(resp.StatusCode, msg)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "invalid response body: " + err.Error(), kind: models.ErrUpstream}
	}
	return nil
}

// IsUnauthorized reports whether err means the session is missing or expired.
func IsUnauthorized(err error) bool {
	return errors.Is(err, models.ErrUnauthorized)
}
