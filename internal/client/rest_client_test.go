package client

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"nexus-chat-cli/internal/client/credential"
	"nexus-chat-cli/internal/dto"
	"nexus-chat-cli/internal/pkg/apierror"
	"nexus-chat-cli/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "header.payload.signature-placeholder"

func freshToken(t *testing.T) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":      uuid.New().String(),
		"username": "ada",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newFakeServer(t *testing.T, register func(app *fiber.App)) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	register(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String()
}

func newTestClient(baseURL string, store credential.Store) IClient {
	return New(Config{BaseURL: baseURL, Timeout: 5 * time.Second}, store, logger.NewNopLogger())
}

func TestRegisterPersistsToken(t *testing.T) {
	token := freshToken(t)
	userId := uuid.New()

	base := newFakeServer(t, func(app *fiber.App) {
		app.Post("/api/v1/auth/register", func(c *fiber.Ctx) error {
			var req dto.RegisterRequest
			require.NoError(t, c.BodyParser(&req))
			assert.Equal(t, "ada", req.Username)
			return c.JSON(dto.AuthResponse{Token: token, UserId: userId, Username: req.Username})
		})
	})

	store := credential.NewMemoryStore()
	client := newTestClient(base, store)

	res, err := client.Register(context.Background(), &dto.RegisterRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "lovelace123",
	})
	require.NoError(t, err)
	assert.Equal(t, userId, res.UserId)

	stored, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, token, stored)
}

func TestRegisterValidatesInput(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", credential.NewMemoryStore())

	_, err := client.Register(context.Background(), &dto.RegisterRequest{
		Username: "ada",
		Email:    "not-an-email",
		Password: "lovelace123",
	})
	assert.Error(t, err)
}

func TestLoginRejectedIsAuthError(t *testing.T) {
	base := newFakeServer(t, func(app *fiber.App) {
		app.Post("/api/v1/auth/login", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "Invalid credentials"})
		})
	})

	store := credential.NewMemoryStore()
	client := newTestClient(base, store)

	_, err := client.Login(context.Background(), &dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong",
	})

	var authErr *apierror.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid credentials", authErr.Message)

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestChatAttachesBearerAndDecodesAnalysis(t *testing.T) {
	token := freshToken(t)
	sessionId := uuid.New()

	base := newFakeServer(t, func(app *fiber.App) {
		app.Post("/api/v1/chat", func(c *fiber.Ctx) error {
			if c.Get("Authorization") != "Bearer "+token {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid token"})
			}
			var req dto.ChatRequest
			require.NoError(t, c.BodyParser(&req))
			assert.Equal(t, dto.ModeAnalysis, req.Mode)

			return c.JSON(dto.ChatResponse{
				SessionId: sessionId,
				Message:   "Analysis complete",
				Mode:      dto.ModeAnalysis,
				Analysis: &dto.AnalysisResult{
					Id:        uuid.New(),
					InputText: req.Message,
					Semantic: dto.SemanticAnalysis{
						Presuppositions: []dto.Presupposition{{
							Trigger:            "the sky",
							PresupposedContent: "there is a sky",
							Significance:       "definite description",
						}},
					},
				},
			})
		})
	})

	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(token))
	client := newTestClient(base, store)

	res, err := client.Chat(context.Background(), &dto.ChatRequest{
		Message:   "The sky is blue.",
		Mode:      dto.ModeAnalysis,
		SessionId: &sessionId,
	})
	require.NoError(t, err)
	assert.Equal(t, "Analysis complete", res.Message)
	require.NotNil(t, res.Analysis)
	assert.Len(t, res.Analysis.Semantic.Presuppositions, 1)
	// Empty layers decode as empty finding lists, not a missing artifact.
	assert.Empty(t, res.Analysis.Syntactic.VoiceAnalysis)
	assert.Empty(t, res.Analysis.CriticalSynthesis.NaturalisedClaims)
}

func TestChatWithoutCredentialFailsBeforeDialing(t *testing.T) {
	var hits atomic.Int64
	base := newFakeServer(t, func(app *fiber.App) {
		app.Post("/api/v1/chat", func(c *fiber.Ctx) error {
			hits.Add(1)
			return c.JSON(dto.ChatResponse{})
		})
	})

	client := newTestClient(base, credential.NewMemoryStore())

	_, err := client.Chat(context.Background(), &dto.ChatRequest{
		Message: "hello",
		Mode:    dto.ModeConversation,
	})

	var authErr *apierror.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, hits.Load())
}

func TestChatWithExpiredCredentialFailsBeforeDialing(t *testing.T) {
	claims := jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(expired))
	client := newTestClient("http://127.0.0.1:1", store)

	_, err = client.Chat(context.Background(), &dto.ChatRequest{
		Message: "hello",
		Mode:    dto.ModeConversation,
	})

	var authErr *apierror.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestAnalyzeErrorBodyBecomesRequestError(t *testing.T) {
	base := newFakeServer(t, func(app *fiber.App) {
		app.Post("/api/v1/analyze", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "perspective engine unavailable"})
		})
	})

	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(freshToken(t)))
	client := newTestClient(base, store)

	_, err := client.Analyze(context.Background(), "some text")

	var reqErr *apierror.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, fiber.StatusInternalServerError, reqErr.StatusCode)
	assert.Equal(t, "perspective engine unavailable", reqErr.Message)
}

func TestUnparseableErrorBodyFallsBackToStatusText(t *testing.T) {
	base := newFakeServer(t, func(app *fiber.App) {
		app.Post("/api/v1/analyze", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusServiceUnavailable).SendString("gateway down")
		})
	})

	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(freshToken(t)))
	client := newTestClient(base, store)

	_, err := client.Analyze(context.Background(), "some text")

	var reqErr *apierror.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "Service Unavailable", reqErr.Message)
}

func TestGetBeliefs(t *testing.T) {
	userId := uuid.New()

	base := newFakeServer(t, func(app *fiber.App) {
		app.Get("/api/v1/beliefs/:userId", func(c *fiber.Ctx) error {
			assert.Equal(t, userId.String(), c.Params("userId"))
			return c.JSON(dto.BeliefsResponse{
				UserId: userId,
				Beliefs: []dto.Belief{
					{Id: uuid.New(), UserId: userId, Claim: "the sky is blue", Confidence: 0.9},
					{Id: uuid.New(), UserId: userId, Claim: "rain is wet", Confidence: 0.7},
				},
				Total: 2,
			})
		})
	})

	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(freshToken(t)))
	client := newTestClient(base, store)

	res, err := client.GetBeliefs(context.Background(), userId)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Len(t, res.Beliefs, 2)
}

func TestConsciousnessStateIsCached(t *testing.T) {
	var hits atomic.Int64
	base := newFakeServer(t, func(app *fiber.App) {
		app.Get("/api/v1/consciousness/state", func(c *fiber.Ctx) error {
			hits.Add(1)
			return c.JSON(dto.ConsciousnessResponse{State: dto.ConsciousnessState{
				EpistemicHumility: 0.42,
				DepthOfInquiry:    0.8,
			}})
		})
	})

	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(freshToken(t)))
	client := New(Config{BaseURL: base, Timeout: 5 * time.Second, StateCacheTTL: time.Minute}, store, logger.NewNopLogger())

	first, err := client.GetConsciousnessState(context.Background())
	require.NoError(t, err)
	second, err := client.GetConsciousnessState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, first.EpistemicHumility, second.EpistemicHumility)
}

func TestGetHealthNeedsNoCredential(t *testing.T) {
	base := newFakeServer(t, func(app *fiber.App) {
		app.Get("/health", func(c *fiber.Ctx) error {
			assert.Empty(t, c.Get("Authorization"))
			return c.JSON(dto.HealthResponse{Status: "healthy"})
		})
	})

	client := newTestClient(base, credential.NewMemoryStore())

	res, err := client.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", res.Status)
}

func TestLogoutClearsCredential(t *testing.T) {
	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(testToken))

	client := newTestClient("http://127.0.0.1:1", store)
	require.NoError(t, client.Logout())

	_, ok := store.Get()
	assert.False(t, ok)
}
