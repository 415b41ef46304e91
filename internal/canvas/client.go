package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/middleware"
	"brain2-canvas/pkg/api"
	apperrors "brain2-canvas/pkg/errors"
)

// Client talks to the canvas HTTP API. It implements MappingAPI.
type Client struct {
	baseURL    string
	token      string
	devUser    string
	httpClient *http.Client
}

var _ MappingAPI = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithDevUser sets the owner header used by servers running without auth.
func WithDevUser(userID string) ClientOption {
	return func(c *Client) { c.devUser = userID }
}

// NewClient creates a client for the server at baseURL
// (e.g. "http://localhost:8080"). When token is non-empty it is sent as a
// bearer token on every request.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOptions filters list reads.
type ListOptions struct {
	Unmapped bool
	Parent   string
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Unmapped {
		q.Set("unmapped", "true")
	}
	if o.Parent != "" {
		q.Set("parent", o.Parent)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) Snapshot(ctx context.Context) (*api.CanvasResponse, error) {
	var resp api.CanvasResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/canvas", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Stats(ctx context.Context) (*api.StatsResponse, error) {
	var resp api.StatsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListDots(ctx context.Context, opts ListOptions) (*api.DotsResponse, error) {
	var resp api.DotsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/dots"+opts.query(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListWheels(ctx context.Context, opts ListOptions) (*api.WheelsResponse, error) {
	var resp api.WheelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/wheels"+opts.query(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListChakras(ctx context.Context, opts ListOptions) (*api.ChakrasResponse, error) {
	var resp api.ChakrasResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/chakras"+opts.query(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MapDotToWheel sets or, with a nil wheelID, clears a dot's wheel.
func (c *Client) MapDotToWheel(ctx context.Context, dotID string, wheelID *string) (*api.MappingResponse, error) {
	return c.mapping(ctx, "/api/v1/dots/"+url.PathEscape(dotID)+"/wheel", "wheelId", wheelID)
}

// MapDotToChakra sets or, with a nil chakraID, clears a dot's chakra.
func (c *Client) MapDotToChakra(ctx context.Context, dotID string, chakraID *string) (*api.MappingResponse, error) {
	return c.mapping(ctx, "/api/v1/dots/"+url.PathEscape(dotID)+"/chakra", "chakraId", chakraID)
}

// MapWheelToChakra sets or, with a nil chakraID, clears a wheel's chakra.
func (c *Client) MapWheelToChakra(ctx context.Context, wheelID string, chakraID *string) (*api.MappingResponse, error) {
	return c.mapping(ctx, "/api/v1/wheels/"+url.PathEscape(wheelID)+"/chakra", "chakraId", chakraID)
}

func (c *Client) mapping(ctx context.Context, path, field string, target *string) (*api.MappingResponse, error) {
	// A nil target encodes as null, which the server reads as unmap.
	body := map[string]*string{field: target}
	var resp api.MappingResponse
	if err := c.doJSON(ctx, http.MethodPut, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SavePosition(ctx context.Context, kind domain.Kind, id string, pos domain.Position, validate bool) (*api.PositionResponse, error) {
	body := api.SavePositionRequest{X: &pos.X, Y: &pos.Y, ValidateCollision: validate}
	path := "/api/v1/positions/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(id)
	var resp api.PositionResponse
	if err := c.doJSON(ctx, http.MethodPut, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) BatchSavePosition(ctx context.Context, req api.BatchSavePositionRequest) (*api.BatchPositionResponse, error) {
	var resp api.BatchPositionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/positions/batch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Connections(ctx context.Context) (*api.ConnectionsResponse, error) {
	var resp api.ConnectionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/stream/connections", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	if c.devUser != "" {
		h.Set(middleware.DevUserHeader, c.devUser)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// decodeError rebuilds the server's AppError so callers can classify it
// with the pkg/errors predicates.
func decodeError(status int, body []byte) error {
	var er apperrors.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Message != "" {
		errType := apperrors.ErrorType(er.Type)
		if errType == "" {
			errType = typeForStatus(status)
		}
		return &apperrors.AppError{
			Type:       errType,
			Message:    er.Message,
			Code:       er.Code,
			Details:    er.Details,
			HTTPStatus: status,
		}
	}
	return statusError(status, strings.TrimSpace(string(body)))
}

func statusError(status int, msg string) error {
	return &apperrors.AppError{
		Type:       typeForStatus(status),
		Message:    msg,
		HTTPStatus: status,
	}
}

func typeForStatus(status int) apperrors.ErrorType {
	switch {
	case status == http.StatusBadRequest:
		return apperrors.ErrorTypeValidation
	case status == http.StatusUnauthorized:
		return apperrors.ErrorTypeUnauthorized
	case status == http.StatusNotFound:
		return apperrors.ErrorTypeNotFound
	case status == http.StatusConflict:
		return apperrors.ErrorTypeConflict
	case status == http.StatusTooManyRequests:
		return apperrors.ErrorTypeRateLimit
	case status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return apperrors.ErrorTypeUnavailable
	}
	return apperrors.ErrorTypeInternal
}
