package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		status   int
	}{
		{name: "accepts code", query: "?state=s1&code=abc", status: http.StatusOK, wantCode: "abc"},
		{name: "rejects wrong state", query: "?state=other&code=abc", status: http.StatusBadRequest},
		{name: "rejects missing code", query: "?state=s1", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := make(chan string, 1)
			failures := make(chan error, 1)
			rec := httptest.NewRecorder()

			callbackHandler("s1", codes, failures).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackPath+tt.query, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, <-codes)
				return
			}
			assert.Error(t, <-failures)
		})
	}
}

func TestAuthorize_RequiresClient(t *testing.T) {
	_, err := Authorize(context.Background(), AuthConfig{}, func(string) {})
	assert.Error(t, err)
}

func TestNewState_Unique(t *testing.T) {
	a, err := newState()
	require.NoError(t, err)
	b, err := newState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
