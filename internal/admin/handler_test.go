package admin

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	_ "modernc.org/sqlite"

	"github.com/dkravets/keychat/internal/cryptox"
	"github.com/dkravets/keychat/internal/logging"
	"github.com/dkravets/keychat/internal/repositories/secrets"
	"github.com/dkravets/keychat/internal/repositories/sessions"
	"github.com/dkravets/keychat/internal/vault"
)

const (
	testUser     = "admin"
	testPassword = "correct horse"
)

func setupServer(t *testing.T) (*httptest.Server, *vault.Service) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE secrets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  site TEXT NOT NULL DEFAULT '',
  account TEXT NOT NULL DEFAULT '',
  password TEXT NOT NULL DEFAULT '',
  extra TEXT,
  expires_at TEXT,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE sessions (
  user_id TEXT PRIMARY KEY,
  step TEXT NOT NULL,
  data TEXT NOT NULL,
  updated_at DATETIME NOT NULL
);
`)
	require.NoError(t, err)

	v := vault.NewService(
		secrets.NewSQLiteRepository(db),
		sessions.NewSQLiteRepository(db),
		cryptox.NewCipher(),
		"test-key",
	)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewHandler(testUser, string(hash), "jwt-secret", time.Hour, v, logging.NewJSON(io.Discard))

	r := chi.NewRouter()
	h.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, v
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	body, _ := json.Marshal(loginRequest{Username: testUser, Password: testPassword})
	resp, err := http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lr loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lr))
	require.NotEmpty(t, lr.Token)
	return lr.Token
}

func doJSON(t *testing.T, method, url, token string, payload, out any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestLogin_WrongCredentials(t *testing.T) {
	srv, _ := setupServer(t)

	body, _ := json.Marshal(loginRequest{Username: testUser, Password: "wrong"})
	resp, err := http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, _ = json.Marshal(loginRequest{Username: "other", Password: testPassword})
	resp, err = http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_Required(t *testing.T) {
	srv, _ := setupServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/secrets", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/secrets", "garbage-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSecrets_CRUD(t *testing.T) {
	srv, _ := setupServer(t)
	token := login(t, srv)

	// Create.
	var created map[string]int64
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/secrets", token, secretPayload{
		Name: "gmail", Site: "g.com", Account: "alice", Password: "pw",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := created["id"]
	require.Positive(t, id)

	// List shows metadata but nothing sensitive.
	var list []secretSummary
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/secrets", token, nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "gmail", list[0].Name)
	assert.False(t, list[0].IsRaw)

	// Get decrypts.
	var detail secretDetailResponse
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/secrets/%d", srv.URL, id), token, nil, &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", detail.Account)
	assert.Equal(t, "pw", detail.Password)

	// Update.
	resp = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/secrets/%d", srv.URL, id), token, secretPayload{
		Name: "gmail2", Site: "g.com", Account: "bob", Password: "pw2",
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/secrets/%d", srv.URL, id), token, nil, &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gmail2", detail.Name)
	assert.Equal(t, "bob", detail.Account)

	// Delete.
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/secrets/%d", srv.URL, id), token, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/secrets/%d", srv.URL, id), token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSecrets_CreateRaw(t *testing.T) {
	srv, _ := setupServer(t)
	token := login(t, srv)

	var created map[string]int64
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/secrets", token, secretPayload{
		Name: "cert", Content: "pem data", IsRaw: true,
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var detail secretDetailResponse
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/secrets/%d", srv.URL, created["id"]), token, nil, &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, detail.IsRaw)
	assert.Equal(t, "pem data", detail.Content)
	assert.Empty(t, detail.Password)
}

func TestSecrets_CreateValidation(t *testing.T) {
	srv, _ := setupServer(t)
	token := login(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/secrets", token, secretPayload{
		Site: "nameless.com", Password: "pw",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/secrets", token, secretPayload{
		Name: "no password",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateExpiry(t *testing.T) {
	srv, v := setupServer(t)
	token := login(t, srv)

	id, err := v.SaveSecret(context.Background(), vault.SaveSecretInput{
		Name: "cert", Site: "s", Account: "a", Password: "p",
	})
	require.NoError(t, err)

	expiry := "2027-01-01"
	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/secrets/%d/expiry", srv.URL, id), token,
		expiryPayload{ExpiresAt: &expiry}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	d, err := v.Detail(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, d.ExpiresAt)
	assert.Equal(t, "2027-01-01", *d.ExpiresAt)

	// Clearing via null.
	resp = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/secrets/%d/expiry", srv.URL, id), token,
		expiryPayload{}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	d, err = v.Detail(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, d.ExpiresAt)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/secrets/9999/expiry", token, expiryPayload{}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	srv, v := setupServer(t)
	token := login(t, srv)

	_, err := v.SaveSecret(context.Background(), vault.SaveSecretInput{
		Name: "gmail", Site: "g.com", Account: "alice", Password: "pw",
	})
	require.NoError(t, err)

	var entries []vault.BackupEntry
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/export", token, nil, &entries)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, entries, 1)
	assert.Equal(t, "pw", entries[0].Password)
}

func TestJWT_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("jwt-secret")

	tok, err := generateToken("admin", secret, time.Hour)
	require.NoError(t, err)

	user, err := usernameFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "admin", user)

	_, err = usernameFromToken(tok, []byte("other-secret"))
	require.Error(t, err)

	expired, err := generateToken("admin", secret, -time.Minute)
	require.NoError(t, err)
	_, err = usernameFromToken(expired, secret)
	require.Error(t, err)
}
