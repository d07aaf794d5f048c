package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/zksponsor/adapters/store"
	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/service"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

var (
	aliceAddress = "0x" + strings.Repeat("aa", 32)
	bobAddress   = "0x" + strings.Repeat("bb", 32)
)

type stubLogin struct {
	state    string
	fragment string
	err      error
	result   *service.CompleteResult
}

func (s *stubLogin) Begin(_ context.Context, state string) (*service.BeginResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if state == "" {
		state = "generated"
	}
	return &service.BeginResult{AuthorizationURL: "https://accounts.example.com/auth?state=" + state, State: state}, nil
}

func (s *stubLogin) Complete(_ context.Context, state, fragment string) (*service.CompleteResult, error) {
	s.state, s.fragment = state, fragment
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubSigner struct {
	token   string
	message []byte
	err     error
}

func (s *stubSigner) SignTransaction(_ context.Context, token string, txBytes []byte) (string, error) {
	s.token, s.message = token, txBytes
	return "zk-signature", s.err
}

func (s *stubSigner) SignPersonalMessage(_ context.Context, token string, message []byte) (string, error) {
	s.token, s.message = token, message
	return "zk-personal-signature", s.err
}

func (s *stubSigner) SignEphemeralRaw(_ context.Context, token string, message []byte) ([]byte, error) {
	s.token, s.message = token, message
	return []byte{1, 2, 3}, s.err
}

type stubSponsor struct {
	prepared *service.PrepareRequest
	claimer  string
	digest   string
	err      error
}

func (s *stubSponsor) Network() string { return "testnet" }

func (s *stubSponsor) Prepare(_ context.Context, req service.PrepareRequest) (*service.Prepared, error) {
	s.prepared = &req
	if s.err != nil {
		return nil, s.err
	}
	return &service.Prepared{Digest: "Dig3st", Bytes: []byte{9, 9}, SponsorAddress: bobAddress, ExpiresAt: epoch.Add(time.Minute)}, nil
}

func (s *stubSponsor) Execute(_ context.Context, digest, claimer, _ string) (*core.ExecutionResult, error) {
	s.digest, s.claimer = digest, claimer
	if s.err != nil {
		return nil, s.err
	}
	return &core.ExecutionResult{Digest: digest}, nil
}

// nopEvents drops every event
type nopEvents struct{}

func (nopEvents) PublishSessionCreated(context.Context, string) error              { return nil }
func (nopEvents) PublishSessionEnded(context.Context, string) error                { return nil }
func (nopEvents) PublishSponsorshipExecuted(context.Context, string, string) error { return nil }

type testServer struct {
	router   *gin.Engine
	clock    *clock.FakeClock
	sessions *service.Sessions
	login    *stubLogin
	signer   *stubSigner
	sponsor  *stubSponsor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.Fake(epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{
		clock:    clk,
		sessions: service.NewSessions(store.NewMemoryStore[core.Session](clk), nopEvents{}, clk, logger),
		login:    &stubLogin{},
		signer:   &stubSigner{},
		sponsor:  &stubSponsor{},
	}
	ts.router = SetupRouter(RouterConfig{
		SecureCookie: true,
		CORSOrigin:   "https://app.example.com",
		Clock:        clk,
		Logger:       logger,
	}, ts.login, ts.sessions, ts.signer, ts.sponsor)
	return ts
}

func (ts *testServer) openSession(t *testing.T, address string) string {
	t.Helper()
	token, _, err := ts.sessions.Create(context.Background(), core.Session{Address: address}, time.Hour)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(method, path, sessionToken string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionToken})
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "ok", "network": "testnet"}, decode(t, w))
}

func TestStart(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/auth/google/start?state=abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "abc", body["state"])
	assert.Contains(t, body["authorizationUrl"], "state=abc")

	ts.login.err = fmt.Errorf("nonce: %w", core.ErrUpstream)
	w = ts.do(http.MethodGet, "/api/auth/google/start", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCallbackServesPage(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/auth/google/callback", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "/api/auth/google/complete")
}

func TestCompleteSetsSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	email := "user@example.com"
	ts.login.result = &service.CompleteResult{
		SessionToken: "session-token",
		ExpiresAt:    epoch.Add(6 * time.Hour),
		Address:      aliceAddress,
		Salt:         "77",
		PublicKey:    "zkpk",
		Email:        &email,
	}

	w := ts.do(http.MethodPost, "/api/auth/google/complete", "", map[string]string{"state": "s", "hash": "#id_token=jwt&state=s"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, aliceAddress, body["address"])
	assert.Equal(t, "77", body["salt"])
	assert.Equal(t, "zkpk", body["publicKey"])
	assert.Equal(t, float64(epoch.Add(6*time.Hour).UnixMilli()), body["expiresAt"])
	assert.Equal(t, email, body["email"])
	assert.Equal(t, "#id_token=jwt&state=s", ts.login.fragment)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, SessionCookieName, cookie.Name)
	assert.Equal(t, "session-token", cookie.Value)
	assert.Equal(t, 6*60*60, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
}

func TestCompleteQueryFallback(t *testing.T) {
	ts := newTestServer(t)
	ts.login.result = &service.CompleteResult{SessionToken: "t", ExpiresAt: epoch.Add(time.Hour), Address: aliceAddress}

	w := ts.do(http.MethodPost, "/api/auth/google/complete?state=s&hash=id_token%3Djwt", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s", ts.login.state)
	assert.Equal(t, "id_token=jwt", ts.login.fragment)
	_, hasEmail := decode(t, w)["email"]
	assert.False(t, hasEmail)
}

func TestCompleteErrors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/auth/google/complete", "", map[string]string{"state": "s"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.login.err = core.ErrStateMismatch
	w = ts.do(http.MethodPost, "/api/auth/google/complete", "", map[string]string{"state": "s", "hash": "h"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, core.ErrStateMismatch.Error(), decode(t, w)["error"])

	ts.login.err = core.ErrUnknownState
	w = ts.do(http.MethodPost, "/api/auth/google/complete", "", map[string]string{"state": "s", "hash": "h"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestSession(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/auth/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/auth/session", "unknown", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := ts.openSession(t, aliceAddress)
	w = ts.do(http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, aliceAddress, body["address"])
	assert.Equal(t, float64(epoch.Add(time.Hour).UnixMilli()), body["expiresAt"])
}

func TestExpiredSessionIsUnauthenticated(t *testing.T) {
	ts := newTestServer(t)
	token := ts.openSession(t, aliceAddress)

	ts.clock.Advance(time.Hour + time.Second)

	w := ts.do(http.MethodPost, "/api/auth/sign", token, map[string]string{"transactionBlock": "AAE="})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ts.signer.token, "signer is never reached")
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	token := ts.openSession(t, aliceAddress)

	w := ts.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)

	_, err := ts.sessions.Get(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	w = ts.do(http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "logout always succeeds")
}

func TestSignTransaction(t *testing.T) {
	ts := newTestServer(t)
	token := ts.openSession(t, aliceAddress)

	w := ts.do(http.MethodPost, "/api/auth/sign", token, map[string]string{"transactionBlock": base64.StdEncoding.EncodeToString([]byte{1, 2})})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zk-signature", decode(t, w)["signature"])
	assert.Equal(t, token, ts.signer.token)
	assert.Equal(t, []byte{1, 2}, ts.signer.message)

	w = ts.do(http.MethodPost, "/api/auth/sign", token, map[string]string{"transactionBlock": "%%%"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/auth/sign", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.signer.err = core.ErrSessionCannotSign
	w = ts.do(http.MethodPost, "/api/auth/sign", token, map[string]string{"transactionBlock": "AQI="})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSignPersonalMessageAndEphemeral(t *testing.T) {
	ts := newTestServer(t)
	token := ts.openSession(t, aliceAddress)
	message := base64.StdEncoding.EncodeToString([]byte("hello"))

	w := ts.do(http.MethodPost, "/api/auth/sign-personal-message", token, map[string]string{"message": message})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zk-personal-signature", decode(t, w)["signature"])
	assert.Equal(t, []byte("hello"), ts.signer.message)

	w = ts.do(http.MethodPost, "/api/auth/sign-ephemeral", token, map[string]string{"message": message})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), decode(t, w)["signature"])

	w = ts.do(http.MethodPost, "/api/auth/sign-ephemeral", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSponsorPrepare(t *testing.T) {
	ts := newTestServer(t)
	token := ts.openSession(t, aliceAddress)
	request := map[string]string{
		"network":                   "testnet",
		"sender":                    aliceAddress,
		"claimer":                   strings.ToUpper(aliceAddress[2:]),
		"transactionBlockKindBytes": base64.StdEncoding.EncodeToString([]byte{0, 1}),
	}

	w := ts.do(http.MethodPost, "/v1/transaction-blocks/sponsor", token, request)
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "Dig3st", data["digest"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{9, 9}), data["bytes"])
	assert.Equal(t, bobAddress, data["sponsor"])
	assert.Equal(t, float64(epoch.Add(time.Minute).UnixMilli()), data["expiresAt"])
	assert.Equal(t, []byte{0, 1}, ts.sponsor.prepared.KindBytes)
	assert.Equal(t, "testnet", ts.sponsor.prepared.Network)
}

func TestSponsorPrepareForOtherClaimerIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	token := ts.openSession(t, aliceAddress)

	w := ts.do(http.MethodPost, "/v1/transaction-blocks/sponsor", token, map[string]string{
		"sender":                    bobAddress,
		"claimer":                   bobAddress,
		"transactionBlockKindBytes": "AAE=",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, ts.sponsor.prepared)
}

func TestSponsorPrepareRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/v1/transaction-blocks/sponsor", "", map[string]string{
		"sender": aliceAddress, "claimer": aliceAddress, "transactionBlockKindBytes": "AAE=",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSponsorPrepareInsufficientFunds(t *testing.T) {
	ts := newTestServer(t)
	token := ts.openSession(t, aliceAddress)
	ts.sponsor.err = core.ErrInsufficientFunds

	w := ts.do(http.MethodPost, "/v1/transaction-blocks/sponsor", token, map[string]string{
		"sender": aliceAddress, "claimer": aliceAddress, "transactionBlockKindBytes": "AAE=",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSponsorExecute(t *testing.T) {
	ts := newTestServer(t)
	token := ts.openSession(t, aliceAddress)

	w := ts.do(http.MethodPost, "/v1/transaction-blocks/sponsor/Dig3st", token, map[string]string{"signature": "sig"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"digest": "Dig3st"}, decode(t, w)["data"])
	assert.Equal(t, aliceAddress, ts.sponsor.claimer)
	assert.Equal(t, "Dig3st", ts.sponsor.digest)

	ts.sponsor.err = fmt.Errorf("sponsored transaction Dig3st: %w", core.ErrNotFound)
	w = ts.do(http.MethodPost, "/v1/transaction-blocks/sponsor/Dig3st", token, map[string]string{"signature": "sig"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodPost, "/v1/transaction-blocks/sponsor/Dig3st", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/sign", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := SetupRouter(RouterConfig{}, ts.login, ts.sessions, ts.signer, ts.sponsor)
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w = httptest.NewRecorder()
	open.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), "no origin configured means no CORS headers")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		core.ErrInvalidInput:        http.StatusBadRequest,
		core.ErrStateMismatch:       http.StatusBadRequest,
		core.ErrUnauthenticated:     http.StatusUnauthorized,
		core.ErrUnknownState:        http.StatusUnauthorized,
		core.ErrSessionCorrupt:      http.StatusUnauthorized,
		core.ErrForbidden:           http.StatusForbidden,
		core.ErrSessionCannotSign:   http.StatusForbidden,
		core.ErrNotFound:            http.StatusNotFound,
		core.ErrConflict:            http.StatusConflict,
		core.ErrExecutionInProgress: http.StatusConflict,
		core.ErrUpstream:            http.StatusBadGateway,
		core.ErrInsufficientFunds:   http.StatusServiceUnavailable,
		errors.New("boom"):          http.StatusInternalServerError,
	}
	for err, status := range cases {
		assert.Equal(t, status, statusFor(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	ts := newTestServer(t)
	ts.login.err = errors.New("redis: connection refused")

	w := ts.do(http.MethodGet, "/api/auth/google/start", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decode(t, w)["error"])
}
