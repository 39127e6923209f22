package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, store Store, google, facebook IdentityVerifier) http.Handler {
	t.Helper()

	service := newTestService(store, google, facebook)
	handler := NewHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", handler.Register)
	mux.HandleFunc("POST /auth/login", handler.Login)
	mux.HandleFunc("POST /auth/refresh", handler.Refresh)
	mux.HandleFunc("POST /auth/logout", handler.Logout)
	mux.HandleFunc("POST /auth/google", handler.GoogleSignIn)
	mux.HandleFunc("POST /auth/facebook", handler.FacebookSignIn)
	return mux
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeAuthResponse(t *testing.T, recorder *httptest.ResponseRecorder) authResponse {
	t.Helper()

	var body authResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func refreshCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == refreshCookieName {
			return cookie
		}
	}
	t.Fatal("no refresh_token cookie in response")
	return nil
}

func TestRegisterLoginRefreshScenario(t *testing.T) {
	handler := newTestHandler(t, newFakeStore(), nil, nil)

	// Register.
	resp := postJSON(t, handler, "/auth/register", registerRequest{
		FirstName: "Ada", LastName: "Lovelace", Email: "a@b.com", Password: "longenough1",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created userResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, "a@b.com", created.Email)
	assert.NotContains(t, resp.Body.String(), "password")

	// Login with the correct password.
	resp = postJSON(t, handler, "/auth/login", loginRequest{Email: "a@b.com", Password: "longenough1"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	login := decodeAuthResponse(t, resp)
	assert.NotEmpty(t, login.AccessToken)
	assert.NotEmpty(t, login.RefreshToken)
	assert.NotEqual(t, login.AccessToken, login.RefreshToken)

	cookie := refreshCookie(t, resp)
	assert.Equal(t, login.RefreshToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, refreshCookiePath, cookie.Path)

	// Login with the wrong password.
	resp = postJSON(t, handler, "/auth/login", loginRequest{Email: "a@b.com", Password: "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// Refresh via the cookie succeeds once.
	resp = postJSON(t, handler, "/auth/refresh", struct{}{}, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	rotated := decodeAuthResponse(t, resp)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, rotated.RefreshToken, refreshCookie(t, resp).Value, "cookie must rotate with the token")

	// Replaying the redeemed token fails.
	resp = postJSON(t, handler, "/auth/refresh", struct{}{}, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRegisterValidation(t *testing.T) {
	handler := newTestHandler(t, newFakeStore(), nil, nil)

	cases := map[string]registerRequest{
		"missing first name": {LastName: "L", Email: "a@b.com", Password: "longenough1"},
		"missing last name":  {FirstName: "F", Email: "a@b.com", Password: "longenough1"},
		"bad email":          {FirstName: "F", LastName: "L", Email: "not-an-email", Password: "longenough1"},
		"short password":     {FirstName: "F", LastName: "L", Email: "a@b.com", Password: "short"},
		// bcrypt caps input at 72 bytes; longer must fail validation, not
		// surface as a server error.
		"overlong password": {FirstName: "F", LastName: "L", Email: "a@b.com", Password: strings.Repeat("p", 100)},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, handler, "/auth/register", body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
}

func TestRegisterConflict(t *testing.T) {
	handler := newTestHandler(t, newFakeStore(), nil, nil)

	body := registerRequest{FirstName: "Ada", LastName: "Lovelace", Email: "a@b.com", Password: "longenough1"}
	resp := postJSON(t, handler, "/auth/register", body)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = postJSON(t, handler, "/auth/register", body)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestRefreshFromBody(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "a@b.com", "longenough1")
	handler := newTestHandler(t, store, nil, nil)

	resp := postJSON(t, handler, "/auth/login", loginRequest{Email: "a@b.com", Password: "longenough1"})
	require.Equal(t, http.StatusOK, resp.Code)
	login := decodeAuthResponse(t, resp)

	resp = postJSON(t, handler, "/auth/refresh", refreshRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestRefreshWithoutToken(t *testing.T) {
	handler := newTestHandler(t, newFakeStore(), nil, nil)

	resp := postJSON(t, handler, "/auth/refresh", struct{}{})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestGoogleSignInEndpoint(t *testing.T) {
	verifier := &fakeVerifier{identity: ExternalIdentity{
		Email: "g@b.com", FirstName: "Grace", LastName: "Hopper", SubjectID: "sub-1",
	}}
	handler := newTestHandler(t, newFakeStore(), verifier, nil)

	resp := postJSON(t, handler, "/auth/google", googleRequest{IDToken: "valid-token"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	result := decodeAuthResponse(t, resp)
	assert.Equal(t, "g@b.com", result.Email)

	verifier.err = assert.AnError
	resp = postJSON(t, handler, "/auth/google", googleRequest{IDToken: "bad-token"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestFacebookSignInEndpoint(t *testing.T) {
	// Real FacebookVerifier pointed at a stub Graph API.
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		if r.URL.Query().Get("access_token") != "good-token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id": "fb-1", "email": "fb@b.com", "first_name": "Margaret", "last_name": "Hamilton",
		})
	}))
	defer graph.Close()

	store := newFakeStore()
	handler := newTestHandler(t, store, nil, NewFacebookVerifier(graph.URL))

	resp := postJSON(t, handler, "/auth/facebook", facebookRequest{AccessToken: "good-token"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "fb@b.com", decodeAuthResponse(t, resp).Email)

	provisioned := store.users["fb@b.com"]
	require.NotNil(t, provisioned.ExternalID)
	assert.Equal(t, "fb-1", *provisioned.ExternalID)

	resp = postJSON(t, handler, "/auth/facebook", facebookRequest{AccessToken: "stolen-token"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "a@b.com", "longenough1")
	handler := newTestHandler(t, store, nil, nil)

	resp := postJSON(t, handler, "/auth/login", loginRequest{Email: "a@b.com", Password: "longenough1"})
	require.Equal(t, http.StatusOK, resp.Code)
	cookie := refreshCookie(t, resp)

	resp = postJSON(t, handler, "/auth/logout", struct{}{}, cookie)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = postJSON(t, handler, "/auth/refresh", struct{}{}, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

// A path-scoped cookie jar must present the refresh cookie to both /auth/refresh
// and /auth/logout, the way a browser would.
func TestRefreshCookieReachesRefreshAndLogout(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "a@b.com", "longenough1")
	handler := newTestHandler(t, store, nil, nil)

	server := httptest.NewTLSServer(handler)
	defer server.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := server.Client()
	client.Jar = jar

	post := func(path string, body any) *http.Response {
		t.Helper()
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		resp, err := client.Post(server.URL+path, "application/json", bytes.NewReader(encoded))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := post("/auth/login", loginRequest{Email: "a@b.com", Password: "longenough1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Empty bodies: the cookie alone must carry the token.
	resp = post("/auth/refresh", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post("/auth/logout", struct{}{})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMalformedJSONBody(t *testing.T) {
	handler := newTestHandler(t, newFakeStore(), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{not json"))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("secret", "recipes-api", "recipes-web", 15*time.Minute)

	var gotUserID string
	protected := Middleware(issuer, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, _, err := issuer.IssueAccessToken(testUser())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "user-1", gotUserID)

	for name, header := range map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			recorder := httptest.NewRecorder()
			protected.ServeHTTP(recorder, req)
			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		})
	}
}
