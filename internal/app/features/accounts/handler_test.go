package accounts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"testing"

	userstore "github.com/dalemusser/blockhub/internal/app/store/users"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAccountServer(t *testing.T, h *Handler) (*httptest.Server, *http.Client) {
	t.Helper()
	require.NoError(t, auth.InitSessionStore(
		"test-session-key-0123456789ABCDEF-xyz", "", false, zap.NewNop()))

	r := chi.NewRouter()
	r.Mount("/accounts", Routes(h))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}
	return srv, client
}

func post(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAccountFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(userstore.New(db), zap.NewNop())
	srv, client := newAccountServer(t, h)

	resp := post(t, client, srv.URL+"/accounts/register", map[string]any{
		"username":   "rosa",
		"email":      "rosa@example.com",
		"password":   "correct-horse",
		"first_name": "Rosa",
		"last_name":  "Diaz",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("registration signs the user in", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/accounts/me")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var me struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
		assert.Equal(t, "rosa", me.Username)
		assert.Equal(t, "rosa@example.com", me.Email)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		resp := post(t, client, srv.URL+"/accounts/register", map[string]any{
			"username": "ROSA", "email": "other@example.com", "password": "long-enough",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("logout then login round-trips", func(t *testing.T) {
		resp := post(t, client, srv.URL+"/accounts/logout", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		getResp, err := client.Get(srv.URL + "/accounts/me")
		require.NoError(t, err)
		getResp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, getResp.StatusCode)

		resp = post(t, client, srv.URL+"/accounts/login", map[string]any{
			"username": "Rosa", "password": "correct-horse",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("bad credentials are rejected", func(t *testing.T) {
		resp := post(t, client, srv.URL+"/accounts/login", map[string]any{
			"username": "rosa", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("password change requires the current password", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/accounts/me/password",
			bytes.NewReader([]byte(`{"current_password":"wrong","new_password":"next-password"}`)))
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		req, err = http.NewRequest(http.MethodPut, srv.URL+"/accounts/me/password",
			bytes.NewReader([]byte(`{"current_password":"correct-horse","new_password":"next-password"}`)))
		require.NoError(t, err)
		resp, err = client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = post(t, client, srv.URL+"/accounts/login", map[string]any{
			"username": "rosa", "password": "next-password",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLoginRateLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(userstore.New(db), zap.NewNop())
	srv, client := newAccountServer(t, h)

	resp := post(t, client, srv.URL+"/accounts/register", map[string]any{
		"username": "marco", "email": "marco@example.com", "password": "open-sesame",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post(t, client, srv.URL+"/accounts/logout", nil)

	// Exhaust the per-username budget with bad passwords.
	for i := 0; i < 5; i++ {
		resp := post(t, client, srv.URL+"/accounts/login", map[string]any{
			"username": "marco", "password": "nope",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp = post(t, client, srv.URL+"/accounts/login", map[string]any{
		"username": "marco", "password": "open-sesame",
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
