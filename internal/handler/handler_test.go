package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/darkodi/shortlink/internal/auth"
	"github.com/darkodi/shortlink/internal/cache"
	"github.com/darkodi/shortlink/internal/config"
	"github.com/darkodi/shortlink/internal/counter"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/model"
	"github.com/darkodi/shortlink/internal/repository"
	"github.com/darkodi/shortlink/internal/service"
)

const testBaseURL = "http://sho.rt"

type testServer struct {
	router http.Handler
	urls   *URLHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, &config.DatabaseConfig{Driver: repository.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(ctx, db, logger.Nop()))

	ctr, err := counter.NewSQL(ctx, db, counter.DefaultName, 3844)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	users := service.NewUserService(userRepo, logger.Nop())
	urlSvc := service.NewURLService(service.Deps{
		URLs:    repository.NewURLRepository(db),
		Users:   userRepo,
		Counter: ctr,
		Cache:   cache.NewTiered(100, nil, logger.Nop()),
		BaseURL: testBaseURL,
	})

	provider := auth.NewLocal(repository.NewCredentialRepository(db), userRepo,
		[]byte("0123456789abcdef0123456789abcdef"), time.Hour, auth.WithBcryptCost(bcrypt.MinCost))
	authSvc := auth.NewService(provider, users, logger.Nop())

	urls := NewURLHandler(urlSvc, logger.Nop(), time.Second)
	router := NewRouter(RouterConfig{
		URLs:     urls,
		Auth:     NewAuthHandler(authSvc, users, logger.Nop()),
		Verifier: authSvc,
		Quota:    urlSvc,
		DB:       db,
		Logger:   logger.Nop(),
	})
	return &testServer{router: router, urls: urls}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// signup registers name and returns an access token.
func (s *testServer) signup(t *testing.T, name string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", model.RegisterRequest{
		Username: name, Email: name + "@example.com", Password: "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/login", "", model.LoginRequest{
		Email: name + "@example.com", Password: "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[model.AuthResponse](t, rec).AccessToken
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health", "", nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shortlink_http_requests_total")
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decode[errorBody](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/auth/register", "", model.RegisterRequest{
		Username: "al", Email: "not-an-email", Password: "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/auth/register", "", model.RegisterRequest{
		Username: "alice2", Email: "alice@example.com", Password: "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/auth/login", "", model.LoginRequest{
		Email: "alice@example.com", Password: "wrong-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/url", "", model.CreateURLRequest{URL: "https://example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/url", "garbage", model.CreateURLRequest{URL: "https://example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRedirectAndStats(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/url", token, model.CreateURLRequest{URL: "https://example.com/landing"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.URL](t, rec)
	assert.Equal(t, "101", created.Alias)
	assert.Equal(t, testBaseURL+"/101", created.ShortURL)
	assert.False(t, created.IsCustomAlias)

	rec = s.do(t, http.MethodGet, "/101", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/landing", rec.Header().Get("Location"))
	s.urls.Wait()

	rec = s.do(t, http.MethodGet, "/101/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.URL](t, rec)
	assert.Equal(t, uint64(1), stats.ClickCount)
	assert.NotNil(t, stats.LastClickedAt)
}

func TestWaitDrainsClickWrites(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/url", token, model.CreateURLRequest{URL: "https://example.com/busy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alias := decode[model.URL](t, rec).Alias

	const n = 20
	for range n {
		rec = s.do(t, http.MethodGet, "/"+alias, "", nil)
		require.Equal(t, http.StatusFound, rec.Code)
	}
	s.urls.Wait()

	rec = s.do(t, http.MethodGet, "/"+alias+"/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(n), decode[model.URL](t, rec).ClickCount)
}

func TestCreateCustomAlias(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/url", token, model.CreateURLRequest{URL: "https://example.com", CustomAlias: "promo"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[model.URL](t, rec).IsCustomAlias)

	rec = s.do(t, http.MethodPost, "/url", token, model.CreateURLRequest{URL: "https://example.org", CustomAlias: "promo"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/url", token, model.CreateURLRequest{URL: "https://example.org", CustomAlias: "no-dash"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedirectUnknownAlias(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/zzzzzz", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/zzzzzz/stats", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTierQuota(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "alice")

	for i := range model.TierLimits[model.TierFree] {
		rec := s.do(t, http.MethodPost, "/url", token, model.CreateURLRequest{URL: "https://example.com/" + strings.Repeat("a", i+1)})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/url", token, model.CreateURLRequest{URL: "https://example.com/over"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error.Message, "Tier Limit Reached")
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 1, "quota resets at the next month, not in a second")
	assert.LessOrEqual(t, retryAfter, 31*24*60*60)

	rec = s.do(t, http.MethodPut, "/auth/tier", token, model.UpdateTierRequest{Tier: model.TierPro})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/url", token, model.CreateURLRequest{URL: "https://example.com/over"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUpdateTier(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "alice")

	rec := s.do(t, http.MethodPut, "/auth/tier", token, model.UpdateTierRequest{Tier: model.TierFree})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User tier is already the same", decode[errorBody](t, rec).Error.Message)

	rec = s.do(t, http.MethodPut, "/auth/tier", token, map[string]string{"tier": "GOLD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/auth/tier", token, model.UpdateTierRequest{Tier: model.TierPremium})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TierPremium, decode[model.User](t, rec).Tier)
}

func TestListURLs(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")

	for _, u := range []model.CreateURLRequest{
		{URL: "https://example.com/1"},
		{URL: "https://example.com/2", CustomAlias: "mine"},
	} {
		rec := s.do(t, http.MethodPost, "/url", alice, u)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := s.do(t, http.MethodPost, "/url", bob, model.CreateURLRequest{URL: "https://example.com/bob"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/url", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.URL](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/url?custom=true", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]model.URL](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].Alias)

	rec = s.do(t, http.MethodGet, "/url?limit=1&skip=1", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.URL](t, rec), 1)

	for _, q := range []string{"limit=abc", "skip=-1", "limit=101", "custom=maybe"} {
		rec = s.do(t, http.MethodGet, "/url?"+q, alice, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec = s.do(t, http.MethodGet, "/url", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTierLimitsRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/url/tiers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []model.TierLimit{
		{Tier: model.TierFree, Limit: 5},
		{Tier: model.TierPro, Limit: 100},
		{Tier: model.TierPremium, Limit: 2000},
	}, decode[[]model.TierLimit](t, rec))
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "alice")

	rec := s.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[model.User](t, rec)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, "alice", me.DisplayUsername)

	rec = s.do(t, http.MethodPatch, "/users/me", token, model.UpdateUserRequest{DisplayUsername: "Alice A."})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice A.", decode[model.User](t, rec).DisplayUsername)

	rec = s.do(t, http.MethodPatch, "/users/me", token, model.UpdateUserRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodDelete, "/url/tiers", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
