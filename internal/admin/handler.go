package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dkravets/keychat/internal/common"
	"github.com/dkravets/keychat/internal/logging"
	"github.com/dkravets/keychat/internal/vault"
)

// Handler serves the management API. All routes except login require a
// Bearer token issued by the login handler.
type Handler struct {
	username      string
	passwordHash  string
	secretKey     []byte
	tokenValidity time.Duration
	vault         *vault.Service
	log           logging.Logger
}

func NewHandler(username, passwordHash, jwtSecret string, tokenValidity time.Duration, v *vault.Service, logger logging.Logger) *Handler {
	return &Handler{
		username:      username,
		passwordHash:  passwordHash,
		secretKey:     []byte(jwtSecret),
		tokenValidity: tokenValidity,
		vault:         v,
		log:           logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/api/secrets", h.list)
		r.Post("/api/secrets", h.create)
		r.Get("/api/secrets/{id}", h.get)
		r.Put("/api/secrets/{id}", h.update)
		r.Put("/api/secrets/{id}/expiry", h.updateExpiry)
		r.Delete("/api/secrets/{id}", h.remove)
		r.Get("/api/export", h.export)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != h.username ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := generateToken(req.Username, h.secretKey, h.tokenValidity)
	if err != nil {
		h.log.Error(r.Context(), "failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := usernameFromToken(token, h.secretKey); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secretSummary is the list view: metadata only, no decrypted fields.
type secretSummary struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Site      string  `json:"site"`
	IsRaw     bool    `json:"is_raw"`
	ExpiresAt *string `json:"expires_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rows, err := h.vault.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	result := make([]secretSummary, len(rows))
	for i := range rows {
		result[i] = secretSummary{
			ID:        rows[i].ID,
			Name:      rows[i].Name,
			Site:      rows[i].Site,
			IsRaw:     rows[i].IsRaw(),
			ExpiresAt: rows[i].ExpiresAt,
			CreatedAt: rows[i].CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, result)
}

type secretDetailResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Site      string  `json:"site,omitempty"`
	Account   string  `json:"account,omitempty"`
	Password  string  `json:"password,omitempty"`
	Content   string  `json:"content,omitempty"`
	Extra     *string `json:"extra,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
	IsRaw     bool    `json:"is_raw"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	d, err := h.vault.Detail(r.Context(), id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case errors.Is(err, common.ErrCrypto):
		writeError(w, http.StatusConflict, "record unreadable")
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}

	resp := secretDetailResponse{
		ID:        d.ID,
		Name:      d.Name,
		ExpiresAt: d.ExpiresAt,
		IsRaw:     d.IsRaw,
	}
	if d.IsRaw {
		resp.Content = d.Password
	} else {
		resp.Site = d.Site
		resp.Account = d.Account
		resp.Password = d.Password
		resp.Extra = d.Extra
	}
	writeJSON(w, http.StatusOK, resp)
}

type secretPayload struct {
	Name      string  `json:"name"`
	Site      string  `json:"site"`
	Account   string  `json:"account"`
	Password  string  `json:"password"`
	Content   string  `json:"content"`
	Extra     *string `json:"extra"`
	ExpiresAt *string `json:"expires_at"`
	IsRaw     bool    `json:"is_raw"`
}

func (p *secretPayload) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if p.IsRaw {
		if p.Content == "" {
			return errors.New("content is required")
		}
		return nil
	}
	if p.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var p secretPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var id int64
	var err error
	if p.IsRaw {
		id, err = h.vault.SaveLongText(r.Context(), p.Name, p.Content, p.ExpiresAt)
	} else {
		id, err = h.vault.SaveSecret(r.Context(), vault.SaveSecretInput{
			Name:      p.Name,
			Site:      p.Site,
			Account:   p.Account,
			Password:  p.Password,
			Extra:     p.Extra,
			ExpiresAt: p.ExpiresAt,
		})
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var p secretPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := vault.SaveSecretInput{
		Name:      p.Name,
		Site:      p.Site,
		Account:   p.Account,
		Password:  p.Password,
		Extra:     p.Extra,
		ExpiresAt: p.ExpiresAt,
	}
	if p.IsRaw {
		in.Password = p.Content
	}

	err := h.vault.UpdateSecret(r.Context(), id, in)
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type expiryPayload struct {
	ExpiresAt *string `json:"expires_at"`
}

// updateExpiry sets or clears only the expiry date, leaving the encrypted
// fields untouched.
func (h *Handler) updateExpiry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var p expiryPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.vault.UpdateExpiry(r.Context(), id, p.ExpiresAt)
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	err := h.vault.Delete(r.Context(), id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	entries, err := h.vault.Export(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error(r.Context(), "admin request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
