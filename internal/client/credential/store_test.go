package credential

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, userId uuid.UUID, username string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":      userId.String(),
		"username": username,
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Get()
	assert.False(t, ok)

	require.NoError(t, store.Set("tok-123"))
	token, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "tok-123", token)

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	assert.False(t, ok)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")

	first := NewFileStore(path)
	require.NoError(t, first.Set("tok-456"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := NewFileStore(path)
	token, ok := second.Get()
	assert.True(t, ok)
	assert.Equal(t, "tok-456", token)

	require.NoError(t, second.Clear())
	_, ok = second.Get()
	assert.False(t, ok)

	// Clearing an already-empty store is not an error.
	require.NoError(t, second.Clear())
}

func TestClaims(t *testing.T) {
	userId := uuid.New()
	expiresAt := time.Now().Add(time.Hour)
	token := signedToken(t, userId, "ada", expiresAt)

	claims, err := Claims(token)
	require.NoError(t, err)
	assert.Equal(t, userId, claims.UserId)
	assert.Equal(t, "ada", claims.Username)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
	assert.False(t, claims.Expired())
}

func TestClaimsExpired(t *testing.T) {
	token := signedToken(t, uuid.New(), "ada", time.Now().Add(-time.Minute))

	claims, err := Claims(token)
	require.NoError(t, err)
	assert.True(t, claims.Expired())
}

func TestClaimsRejectsGarbage(t *testing.T) {
	_, err := Claims("not-a-jwt")
	assert.Error(t, err)
}
