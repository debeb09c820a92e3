package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingkit/credits-api/internal/app"
	"github.com/listingkit/credits-api/internal/config"
	"github.com/listingkit/credits-api/internal/pkg/database/dbtest"
	"github.com/listingkit/credits-api/internal/pkg/jwt"
	"github.com/listingkit/credits-api/internal/pkg/webhook"
)

type testServer struct {
	handler http.Handler
	db      *sqlx.DB
	jwt     *jwt.Service
	t       *testing.T
}

func newTestServer(t *testing.T) *testServer {
	cfg := &config.Config{
		JWTSecret:               "router-test-secret",
		JWTAccessTTL:            time.Hour,
		AllowedOrigins:          []string{"http://localhost:3000"},
		PaymentWebhookSecret:    "whsec_test",
		PaymentWebhookTolerance: 5 * time.Minute,
		Currency:                "USD",
		RedeemRateLimit:         10,
		RedeemRateWindow:        time.Minute,
	}
	db := dbtest.New(t)
	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	verifier := webhook.NewVerifier(cfg.PaymentWebhookSecret, cfg.PaymentWebhookTolerance)
	services := app.NewServices(cfg, db, nil)

	srv := &testServer{
		handler: newRouter(cfg, db, nil, jwtService, verifier, services),
		db:      db,
		jwt:     jwtService,
		t:       t,
	}
	return srv
}

func (s *testServer) do(method, path, role string, userID uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(s.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := s.jwt.GenerateAccessToken(userID, role)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, rr.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func TestRouterHealthAndPing(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(http.MethodGet, "/health", "", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = srv.do(http.MethodGet, "/api/v1/ping", "", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/v1/credits/balance", "/api/admin/promo-codes"} {
		rr := srv.do(http.MethodGet, path, "", uuid.Nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRouterSeparatesRoles(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(http.MethodGet, "/api/admin/reconciliation", jwt.RoleAgent, uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = srv.do(http.MethodGet, "/api/v1/credits/balance", jwt.RoleAdmin, uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouterRedeemThenConsume(t *testing.T) {
	srv := newTestServer(t)
	adminID := uuid.New()
	agentID := uuid.New()

	rr := srv.do(http.MethodPost, "/api/admin/promo-codes", jwt.RoleAdmin, adminID, map[string]interface{}{
		"code":    "welcome5",
		"credits": 5,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(http.MethodPost, "/api/v1/promo/redeem", jwt.RoleAgent, agentID, map[string]string{"code": " Welcome5 "})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var redeemed struct {
		CreditsAdded int `json:"credits_added"`
		NewBalance   int `json:"new_balance"`
	}
	decodeData(t, rr, &redeemed)
	assert.Equal(t, 5, redeemed.CreditsAdded)
	assert.Equal(t, 5, redeemed.NewBalance)

	// The listing table is owned by the listings service; seed it directly.
	listingID := dbtest.CreateListing(t, srv.db, agentID)

	path := "/api/v1/listings/" + listingID.String() + "/consume-credit"
	for i, charged := range []bool{true, false} {
		rr = srv.do(http.MethodPost, path, jwt.RoleAgent, agentID, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var consumed struct {
			Charged bool `json:"charged"`
			Balance int  `json:"balance"`
		}
		decodeData(t, rr, &consumed)
		assert.Equal(t, charged, consumed.Charged, "call %d", i)
		assert.Equal(t, 4, consumed.Balance, "call %d", i)
	}

	rr = srv.do(http.MethodGet, "/api/admin/reconciliation", jwt.RoleAdmin, adminID, nil)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}
