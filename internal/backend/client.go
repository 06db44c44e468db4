// Package backend talks to the pantry backend over JSON/HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/logger"
	"github.com/suPer8Hu/pantry-assistant/internal/metrics"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

type AuthMode string

const (
	Login  AuthMode = "login"
	Signup AuthMode = "signup"
)

// NewItem is the create request body. ExpirationDate nil is sent as null.
type NewItem struct {
	UserID         string       `json:"user_id"`
	Name           string       `json:"name"`
	Quantity       int          `json:"quantity"`
	ExpirationDate *models.Date `json:"expiration_date"`
}

type Client struct {
	BaseURL string
	Client  *http.Client

	limiter *rate.Limiter
	metrics metrics.Recorder
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.Client = hc }
}

// WithRateLimit caps outgoing requests per second. Zero or less means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.metrics = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.OrDefault(l) }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 90 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 0),
		metrics: metrics.Nop{},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type authReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResp struct {
	User *models.Identity `json:"user"`
}

type errorResp struct {
	Detail json.RawMessage `json:"detail"`
}

// Authenticate posts credentials to /auth/login or /auth/signup.
// A rejected attempt returns *common.AuthError carrying the server detail.
func (c *Client) Authenticate(ctx context.Context, mode AuthMode, email, password string) (models.Identity, error) {
	if mode != Login && mode != Signup {
		return models.Identity{}, &common.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown auth mode %q", mode)}
	}
	op := "auth_" + string(mode)

	status, body, err := c.call(ctx, op, http.MethodPost, "/auth/"+string(mode), authReq{Email: email, Password: password})
	if err != nil {
		return models.Identity{}, err
	}
	if !isSuccess(status) {
		return models.Identity{}, &common.AuthError{Detail: detailOf(body, status)}
	}

	var decoded authResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return models.Identity{}, &common.TransportError{Op: op, Err: err}
	}
	if decoded.User == nil || !decoded.User.Valid() {
		return models.Identity{}, &common.TransportError{Op: op, Err: errors.New("response has no user")}
	}
	return *decoded.User, nil
}

func (c *Client) ListInventory(ctx context.Context, userID string) ([]models.InventoryItem, error) {
	const op = "list_inventory"
	status, body, err := c.call(ctx, op, http.MethodGet, "/inventory/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &common.RemoteRejection{Op: op, Status: status}
	}

	var items []models.InventoryItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &common.TransportError{Op: op, Err: err}
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	return items, nil
}

// AddItem creates an item. The response body is not trusted for state; callers re-list.
func (c *Client) AddItem(ctx context.Context, item NewItem) error {
	const op = "add_item"
	status, _, err := c.call(ctx, op, http.MethodPost, "/inventory", item)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &common.RemoteRejection{Op: op, Status: status}
	}
	return nil
}

func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	const op = "delete_item"
	status, _, err := c.call(ctx, op, http.MethodDelete, "/inventory/"+url.PathEscape(itemID), nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &common.RemoteRejection{Op: op, Status: status}
	}
	return nil
}

type chatReq struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResp struct {
	Response *string `json:"response"`
}

// Reply sends one chat turn and returns the assistant text.
func (c *Client) Reply(ctx context.Context, userID, message string) (string, error) {
	const op = "chat"
	status, body, err := c.call(ctx, op, http.MethodPost, "/chat", chatReq{UserID: userID, Message: message})
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", &common.RemoteRejection{Op: op, Status: status}
	}

	var decoded chatResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &common.TransportError{Op: op, Err: err}
	}
	if decoded.Response == nil {
		return "", &common.TransportError{Op: op, Err: errors.New("response field missing")}
	}
	return *decoded.Response, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, in any) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, &common.TransportError{Op: op, Err: err}
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, &common.TransportError{Op: op, Err: err}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, &common.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID, _ := common.NewULID()
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		c.metrics.RecordRequest(op, "transport", time.Since(start))
		c.logger.Warn("backend call failed",
			slog.String("op", op),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return 0, nil, &common.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.RecordRequest(op, "transport", time.Since(start))
		return 0, nil, &common.TransportError{Op: op, Err: err}
	}

	outcome := "ok"
	if !isSuccess(resp.StatusCode) {
		outcome = "rejected"
		c.logger.Info("backend returned non-success status",
			slog.String("op", op),
			slog.String("request_id", requestID),
			slog.Int("status", resp.StatusCode),
		)
	}
	c.metrics.RecordRequest(op, outcome, time.Since(start))
	c.logger.Debug("backend call",
		slog.String("op", op),
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

// detailOf pulls a human readable message out of an error body. FastAPI style
// bodies carry either a string detail or a list of validation entries.
func detailOf(body []byte, status int) string {
	var decoded errorResp
	if err := json.Unmarshal(body, &decoded); err == nil && len(decoded.Detail) > 0 {
		var s string
		if json.Unmarshal(decoded.Detail, &s) == nil && s != "" {
			return s
		}
		var entries []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(decoded.Detail, &entries) == nil && len(entries) > 0 && entries[0].Msg != "" {
			return entries[0].Msg
		}
	}
	return fmt.Sprintf("request rejected (%d %s)", status, http.StatusText(status))
}
