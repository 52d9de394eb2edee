package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nexus-chat-cli/internal/client/credential"
	"nexus-chat-cli/internal/dto"
	"nexus-chat-cli/internal/pkg/apierror"
	"nexus-chat-cli/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const stateCacheKey = "consciousness_state"

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	StateCacheTTL time.Duration
}

type IClient interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	Logout() error
	Chat(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error)
	Analyze(ctx context.Context, text string) (*dto.AnalyzeResponse, error)
	GetBeliefs(ctx context.Context, userId uuid.UUID) (*dto.BeliefsResponse, error)
	GetConsciousnessState(ctx context.Context) (*dto.ConsciousnessState, error)
	GetHealth(ctx context.Context) (*dto.HealthResponse, error)
}

type restClient struct {
	cfg        Config
	httpClient *http.Client
	creds      credential.Store
	validate   *validator.Validate
	stateCache *cache.Cache
	tracer     trace.Tracer
	log        logger.ILogger
}

func New(cfg Config, creds credential.Store, log logger.ILogger) IClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.StateCacheTTL == 0 {
		cfg.StateCacheTTL = 30 * time.Second
	}

	return &restClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		creds:      creds,
		validate:   validator.New(),
		stateCache: cache.New(cfg.StateCacheTTL, 5*time.Minute),
		tracer:     otel.Tracer("nexus-chat-cli/client"),
		log:        log,
	}
}

// Register creates a new account and persists the returned token before
// returning, so the very next authenticated call can use it.
func (c *restClient) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate register request: %w", err)
	}

	var res dto.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/register", req, &res, false); err != nil {
		return nil, err
	}

	if err := c.creds.Set(res.Token); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}

	c.log.Info("RestClient", "Registered", map[string]interface{}{"user_id": res.UserId, "username": res.Username})
	return &res, nil
}

// Login authenticates and persists the returned token before returning.
func (c *restClient) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate login request: %w", err)
	}

	var res dto.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", req, &res, false); err != nil {
		return nil, err
	}

	if err := c.creds.Set(res.Token); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}

	c.log.Info("RestClient", "Logged in", map[string]interface{}{"user_id": res.UserId, "username": res.Username})
	return &res, nil
}

// Logout clears the stored credential. There is no server-side call.
func (c *restClient) Logout() error {
	return c.creds.Clear()
}

func (c *restClient) Chat(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate chat request: %w", err)
	}

	var res dto.ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/chat", req, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *restClient) Analyze(ctx context.Context, text string) (*dto.AnalyzeResponse, error) {
	req := &dto.AnalyzeRequest{Text: text}
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate analyze request: %w", err)
	}

	var res dto.AnalyzeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/analyze", req, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *restClient) GetBeliefs(ctx context.Context, userId uuid.UUID) (*dto.BeliefsResponse, error) {
	var res dto.BeliefsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/beliefs/"+userId.String(), nil, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetConsciousnessState polls the engine's posture snapshot. Snapshots are
// cached for StateCacheTTL so a chatty presentation layer does not hammer the
// endpoint; the value is best-effort supplementary data anyway.
func (c *restClient) GetConsciousnessState(ctx context.Context) (*dto.ConsciousnessState, error) {
	if x, found := c.stateCache.Get(stateCacheKey); found {
		state := x.(dto.ConsciousnessState)
		return &state, nil
	}

	var res dto.ConsciousnessResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/consciousness/state", nil, &res, true); err != nil {
		return nil, err
	}

	c.stateCache.Set(stateCacheKey, res.State, cache.DefaultExpiration)
	return &res.State, nil
}

func (c *restClient) GetHealth(ctx context.Context) (*dto.HealthResponse, error) {
	var res dto.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &res, false); err != nil {
		return nil, err
	}
	return &res, nil
}

// doJSON performs one request/response round trip. Non-2xx statuses are
// mapped onto the error taxonomy: 401/403 become AuthError, everything else
// RequestError with the server's error field or the status text as message.
func (c *restClient) doJSON(ctx context.Context, method, path string, body, out interface{}, authed bool) error {
	ctx, span := c.tracer.Start(ctx, "nexus.rest "+method+" "+path)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if authed {
		token, ok := c.creds.Get()
		if !ok {
			err := &apierror.AuthError{Message: "no credential stored, login first"}
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if claims, claimsErr := credential.Claims(token); claimsErr == nil && claims.Expired() {
			err := &apierror.AuthError{Message: "credential expired, login again"}
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("nexus request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("read response: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		message := http.StatusText(res.StatusCode)
		var errRes dto.ErrorResponse
		if jsonErr := json.Unmarshal(resBody, &errRes); jsonErr == nil && errRes.Error != "" {
			message = errRes.Error
		}

		c.log.Warn("RestClient", "Request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": res.StatusCode,
			"error":  message,
		})
		span.SetStatus(codes.Error, message)

		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return &apierror.AuthError{Message: message}
		}
		return &apierror.RequestError{StatusCode: res.StatusCode, Message: message}
	}

	if out != nil {
		if err := json.Unmarshal(resBody, out); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
