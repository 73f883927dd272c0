package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/api"
	"github.com/hanapgigs/escrow-engine/internal/api/middleware"
	"github.com/hanapgigs/escrow-engine/internal/config"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/idempotency"
	"github.com/hanapgigs/escrow-engine/internal/repository"
	"github.com/hanapgigs/escrow-engine/internal/testutil/dblock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "0123456789abcdef0123456789abcdef"
	testJWTIssuer   = "escrow-engine"
	testJWTAudience = "escrow-api"
)

func TestMain(m *testing.M) {
	if os.Getenv("DATABASE_URL") == "" {
		os.Exit(m.Run())
	}
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}

// setupRouter wires the real router over the migrated test database named by
// DATABASE_URL, with postgres-only idempotency and no redis.
func setupRouter(t *testing.T) (http.Handler, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	t.Cleanup(func() { middleware.SetJWTValidation("", "") })

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ctx := context.Background()
	_, err = pool.Exec(ctx,
		`TRUNCATE idempotency_keys, notifications, contracts, transactions, projects, bids, jobs, accounts, users CASCADE`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, username, email, role) VALUES ($1, 'system', 'system@hanapgigs.com', 'system')`,
		domain.SystemUserID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO accounts (id, user_id, balance_centavos, currency) VALUES ($1, $2, 0, 'PHP')`,
		domain.PlatformFeeAccountID, domain.SystemUserID)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		FeeRate:            decimal.RequireFromString("0.05"),
		MinDepositCentavos: 5000,
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
		IdempotencyTTL:     time.Hour,
	}
	store := repository.NewStore(pool)
	idemStore := idempotency.NewStore(nil, pool, cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, zap.NewNop(), pool, store, idemStore, nil)
	return router.Routes(), pool
}

func doJSON(t *testing.T, h http.Handler, method, path, token, idemKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		r.Header.Set("Idempotency-Key", idemKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

// registerAndLogin creates a user through the public surface and returns its
// id with a token minted by the login handler.
func registerAndLogin(t *testing.T, h http.Handler, role string) (id, token string) {
	t.Helper()
	suffix := uuid.NewString()[:8]
	w := doJSON(t, h, "POST", "/v1/users", "", "", map[string]string{
		"username": role + suffix,
		"email":    role + suffix + "@example.com",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id = decodeBody(t, w)["id"].(string)

	w = doJSON(t, h, "POST", "/v1/auth/login", "", "", map[string]string{"user_id": id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token = decodeBody(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return id, token
}

func openWallet(t *testing.T, h http.Handler, token string, depositCentavos int64) {
	t.Helper()
	w := doJSON(t, h, "POST", "/v1/accounts", token, "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	if depositCentavos > 0 {
		key := "dep-" + uuid.NewString()
		w = doJSON(t, h, "POST", "/v1/accounts/deposits", token, key, map[string]any{
			"amount_centavos": depositCentavos,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func balanceOf(t *testing.T, h http.Handler, token string) int64 {
	t.Helper()
	w := doJSON(t, h, "GET", "/v1/accounts/balance", token, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return int64(decodeBody(t, w)["balance_centavos"].(float64))
}

func postJobAndBid(t *testing.T, h http.Handler, employerToken, workerToken string, bidCentavos int64) (jobID, bidID string) {
	t.Helper()
	w := doJSON(t, h, "POST", "/v1/jobs", employerToken, "", map[string]any{
		"title":         "Landing page",
		"description":   "Three sections, responsive",
		"duration_days": 14,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	jobID = decodeBody(t, w)["id"].(string)

	w = doJSON(t, h, "POST", "/v1/jobs/"+jobID+"/bids", workerToken, "", map[string]any{
		"amount_centavos": bidCentavos,
		"cover_note":      "can start monday",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bidID = decodeBody(t, w)["id"].(string)
	return jobID, bidID
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	h, _ := setupRouter(t)

	w := doJSON(t, h, "GET", "/v1/accounts/balance", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	body := decodeBody(t, w)
	assert.Contains(t, body["type"], "authorization-header-required")
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.Equal(t, "/v1/accounts/balance", body["instance"])
}

func TestLoginTokenWorksAgainstProtectedRoutes(t *testing.T) {
	h, _ := setupRouter(t)

	// The token minted by the login handler must carry every claim the
	// auth middleware validates, issuer and audience included.
	_, token := registerAndLogin(t, h, "employer")
	openWallet(t, h, token, 0)

	assert.Equal(t, int64(0), balanceOf(t, h, token))
}

func TestSettlementOverHTTP(t *testing.T) {
	h, _ := setupRouter(t)

	_, employerToken := registerAndLogin(t, h, "employer")
	_, workerToken := registerAndLogin(t, h, "worker")
	openWallet(t, h, employerToken, 100000)
	openWallet(t, h, workerToken, 0)

	_, bidID := postJobAndBid(t, h, employerToken, workerToken, 50000)

	// The worker cannot accept a bid on someone else's job.
	w := doJSON(t, h, "PATCH", "/v1/bids/"+bidID, workerToken, "acc-worker", map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = doJSON(t, h, "PATCH", "/v1/bids/"+bidID, employerToken, "acc-employer", map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	fees := body["fees"].(map[string]any)
	assert.Equal(t, float64(50000), fees["agreed_centavos"])
	assert.Equal(t, float64(2500), fees["fee_centavos"])
	assert.Equal(t, float64(47500), fees["net_centavos"])
	require.NotNil(t, body["project"])
	require.NotNil(t, body["contract"])

	assert.Equal(t, int64(50000), balanceOf(t, h, employerToken))

	// A retry under the same key replays the settlement instead of
	// debiting again.
	w = doJSON(t, h, "PATCH", "/v1/bids/"+bidID, employerToken, "acc-employer", map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(50000), balanceOf(t, h, employerToken))
}

func TestAcceptBidInsufficientFundsOverHTTP(t *testing.T) {
	h, _ := setupRouter(t)

	_, employerToken := registerAndLogin(t, h, "employer")
	_, workerToken := registerAndLogin(t, h, "worker")
	openWallet(t, h, employerToken, 10000)
	openWallet(t, h, workerToken, 0)

	_, bidID := postJobAndBid(t, h, employerToken, workerToken, 50000)

	w := doJSON(t, h, "PATCH", "/v1/bids/"+bidID, employerToken, "acc-poor", map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Contains(t, body["type"], "insufficient-funds")
	assert.Equal(t, float64(50000), body["required_centavos"])
	assert.Equal(t, float64(10000), body["current_centavos"])

	assert.Equal(t, int64(10000), balanceOf(t, h, employerToken))
}

func TestDepositIdempotencyKeyReplay(t *testing.T) {
	h, _ := setupRouter(t)

	_, token := registerAndLogin(t, h, "employer")
	openWallet(t, h, token, 0)

	deposit := map[string]any{"amount_centavos": 25000}
	w := doJSON(t, h, "POST", "/v1/accounts/deposits", token, "dep-key-1", deposit)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decodeBody(t, w)

	// Same key, same request: the cached response comes back and the
	// balance moves exactly once.
	w = doJSON(t, h, "POST", "/v1/accounts/deposits", token, "dep-key-1", deposit)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := decodeBody(t, w)

	assert.Equal(t, first["id"], second["id"])
	assert.Equal(t, int64(25000), balanceOf(t, h, token))
}

func TestOperationalEndpoints(t *testing.T) {
	h, _ := setupRouter(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/openapi.yaml", "/docs/index.html"} {
		w := doJSON(t, h, "GET", path, "", "", nil)
		assert.Equal(t, http.StatusOK, w.Code, "GET %s: %s", path, w.Body.String())
	}
}
