package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jjudge-oj/accounts/config"
	"github.com/jjudge-oj/accounts/internal/forms"
	"github.com/jjudge-oj/accounts/internal/passwords"
	"github.com/jjudge-oj/accounts/internal/services"
	"github.com/jjudge-oj/accounts/internal/sessions"
	"github.com/jjudge-oj/accounts/internal/store"
)

type testEnv struct {
	server   *httptest.Server
	client   *http.Client
	repo     *store.MemoryUserRepository
	sessions *sessions.MemoryStore
	handler  *AccountsHandler
	hasher   *passwords.Hasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := store.NewMemoryUserRepository()
	hasher := passwords.NewHasher(bcrypt.MinCost)
	users := services.NewUserService(repo, hasher, nil, zap.NewNop())
	sessionStore := sessions.NewMemoryStore()
	manager := sessions.NewManager(sessionStore, config.SessionConfig{
		Secret:     "test-secret",
		TTL:        time.Hour,
		CookieName: "sessionid",
	})
	handler := NewAccountsHandler(users, manager, zap.NewNop())

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	AccountsRouter(router, handler)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		repo:     repo,
		sessions: sessionStore,
		handler:  handler,
		hasher:   hasher,
	}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *testEnv) post(t *testing.T, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, values)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

// isAuthenticated runs the jar's cookies through the session middleware.
func (e *testEnv) isAuthenticated(t *testing.T) bool {
	t.Helper()

	target, err := url.Parse(e.server.URL + Reverse(RouteProfile))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, target.String(), nil)
	for _, cookie := range e.client.Jar.Cookies(target) {
		req.AddCookie(cookie)
	}

	var authenticated bool
	probe := e.handler.Authenticate(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		authenticated = IsAuthenticated(r)
	}))
	probe.ServeHTTP(httptest.NewRecorder(), req)
	return authenticated
}

func (e *testEnv) userCount(t *testing.T) int {
	t.Helper()
	count, err := e.repo.Count(context.Background())
	require.NoError(t, err)
	return count
}

func (e *testEnv) registerUser(t *testing.T, username, password string) {
	t.Helper()
	resp, _ := e.post(t, Reverse(RouteRegister), url.Values{
		"username":   {username},
		"first_name": {"Abdulboqiy"},
		"last_name":  {"Test"},
		"email":      {username + "@example.com"},
		"password":   {password},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func (e *testEnv) login(t *testing.T, username, password string) *http.Response {
	t.Helper()
	resp, _ := e.post(t, Reverse(RouteLogin), url.Values{
		"username": {username},
		"password": {password},
	})
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestReverse(t *testing.T) {
	assert.Equal(t, "/users/register/", Reverse(RouteRegister))
	assert.Equal(t, "/users/login/", Reverse(RouteLogin))
	assert.Equal(t, "/users/logout/", Reverse(RouteLogout))
	assert.Equal(t, "/users/profile/", Reverse(RouteProfile))
	assert.Equal(t, "/users/profile/edit/", Reverse(RouteProfileEdit))
	assert.Panics(t, func() { Reverse("nope") })
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/healthz")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestRegister_GetRendersForm(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, Reverse(RouteRegister))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `name="password"`)
}

func TestRegister_ValidCreatesOneUserWithHashedPassword(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.post(t, Reverse(RouteRegister), url.Values{
		"username":   {"abdulboqiy"},
		"first_name": {"Abdulboqiy"},
		"last_name":  {"Tester"},
		"email":      {"abdulboqiy@example.com"},
		"password":   {"Str0ng-pass"},
	})

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, Reverse(RouteLogin), resp.Header.Get("Location"))
	assert.Equal(t, 1, env.userCount(t))

	user, err := env.repo.GetByUsername(context.Background(), "abdulboqiy")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng-pass", user.PasswordHash)
	assert.True(t, env.hasher.Verify(user.PasswordHash, "Str0ng-pass"))
	assert.Equal(t, "abdulboqiy@example.com", user.Email)
}

func TestRegister_MissingRequiredFields(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, Reverse(RouteRegister), url.Values{
		"first_name": {"abdulboqiy"},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, env.userCount(t))
	assert.Equal(t, 2, strings.Count(body, forms.MsgRequired))
}

func TestRegister_InvalidEmail(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, Reverse(RouteRegister), url.Values{
		"username": {"abdulboqiy"},
		"email":    {"invalid-email"},
		"password": {"pw"},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, env.userCount(t))
	assert.Contains(t, body, forms.MsgInvalidEmail)
	assert.Contains(t, body, `value="abdulboqiy"`)
	assert.NotContains(t, body, `value="pw"`)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "abdulboqiy", "pw")

	resp, body := env.post(t, Reverse(RouteRegister), url.Values{
		"username": {"abdulboqiy"},
		"password": {"other"},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.userCount(t))
	assert.Contains(t, body, forms.MsgUsernameTaken)
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "abdulboqiy", "pw")

	resp := env.login(t, "abdulboqiy", "pw")

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, Reverse(RouteProfile), resp.Header.Get("Location"))
	assert.True(t, env.isAuthenticated(t))
	assert.Equal(t, 1, env.sessions.Len())

	user, err := env.repo.GetByUsername(context.Background(), "abdulboqiy")
	require.NoError(t, err)
	assert.NotNil(t, user.LastLogin)
}

func TestLogin_WrongUsernameOrPassword(t *testing.T) {
	for _, tc := range []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong username", username: "someone-else", password: "pw"},
		{name: "wrong password", username: "abdulboqiy", password: "nope"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.registerUser(t, "abdulboqiy", "pw")

			resp, body := env.post(t, Reverse(RouteLogin), url.Values{
				"username": {tc.username},
				"password": {tc.password},
			})

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, body, forms.MsgInvalidLogin)
			assert.False(t, env.isAuthenticated(t))
			assert.Zero(t, env.sessions.Len())
		})
	}
}

func TestLogin_RedirectsToSafeNext(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "abdulboqiy", "pw")

	resp, _ := env.post(t, Reverse(RouteLogin), url.Values{
		"username": {"abdulboqiy"},
		"password": {"pw"},
		"next":     {"/users/profile/edit/"},
	})
	assert.Equal(t, Reverse(RouteProfileEdit), resp.Header.Get("Location"))

	resp, _ = env.post(t, Reverse(RouteLogin), url.Values{
		"username": {"abdulboqiy"},
		"password": {"pw"},
		"next":     {"https://evil.example/"},
	})
	assert.Equal(t, Reverse(RouteProfile), resp.Header.Get("Location"))
}

func TestLogin_RotatesSession(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "abdulboqiy", "pw")

	env.login(t, "abdulboqiy", "pw")
	env.login(t, "abdulboqiy", "pw")

	assert.Equal(t, 1, env.sessions.Len())
	assert.True(t, env.isAuthenticated(t))
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "abdulboqiy", "pw")
	env.login(t, "abdulboqiy", "pw")
	require.True(t, env.isAuthenticated(t))

	resp, _ := env.get(t, Reverse(RouteLogout))

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, Reverse(RouteLogin), resp.Header.Get("Location"))
	assert.False(t, env.isAuthenticated(t))
	assert.Zero(t, env.sessions.Len())
}

func TestLogout_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, Reverse(RouteLogout))

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, Reverse(RouteLogin), resp.Header.Get("Location"))
}

func TestProfile_AnonymousRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, Reverse(RouteProfile))

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/users/login/?next=/users/profile/", resp.Header.Get("Location"))

	resp, _ = env.get(t, Reverse(RouteProfileEdit))
	assert.Equal(t, "/users/login/?next=/users/profile/edit/", resp.Header.Get("Location"))
}

func TestProfile_RendersUserFields(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.post(t, Reverse(RouteRegister), url.Values{
		"username":   {"abdulboqiy"},
		"first_name": {"Abdul"},
		"last_name":  {"O'Boqiy"},
		"email":      {"abdul@example.com"},
		"password":   {"pw"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	env.login(t, "abdulboqiy", "pw")

	resp, body := env.get(t, Reverse(RouteProfile))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "abdulboqiy")
	assert.Contains(t, body, "Abdul")
	assert.Contains(t, body, "O&#39;Boqiy")
	assert.Contains(t, body, "abdul@example.com")
}

func TestProfileEdit_UpdatesRecord(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "abdulboqiy", "pw")
	env.login(t, "abdulboqiy", "pw")

	resp, body := env.get(t, Reverse(RouteProfileEdit))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="abdulboqiy@example.com"`)

	resp, _ = env.post(t, Reverse(RouteProfileEdit), url.Values{
		"username":   {"abdulboqiy"},
		"first_name": {"Abdulboqiy"},
		"last_name":  {"Updated"},
		"email":      {"new@example.com"},
	})

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, Reverse(RouteProfile), resp.Header.Get("Location"))

	user, err := env.repo.GetByUsername(context.Background(), "abdulboqiy")
	require.NoError(t, err)
	assert.Equal(t, "Updated", user.LastName)
	assert.Equal(t, "new@example.com", user.Email)
}

func TestProfileEdit_InvalidInputRerenders(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "abdulboqiy", "pw")
	env.registerUser(t, "taken", "pw")
	env.login(t, "abdulboqiy", "pw")

	resp, body := env.post(t, Reverse(RouteProfileEdit), url.Values{
		"username": {"taken"},
		"email":    {"not-an-email"},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, forms.MsgUsernameTaken)
	assert.Contains(t, body, forms.MsgInvalidEmail)

	user, err := env.repo.GetByUsername(context.Background(), "abdulboqiy")
	require.NoError(t, err)
	assert.Equal(t, "abdulboqiy@example.com", user.Email)
}

func TestAuthenticate_InactiveUserIsAnonymous(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "abdulboqiy", "pw")
	env.login(t, "abdulboqiy", "pw")
	require.True(t, env.isAuthenticated(t))

	user, err := env.repo.GetByUsername(context.Background(), "abdulboqiy")
	require.NoError(t, err)
	user.IsActive = false
	_, err = env.repo.Update(context.Background(), user)
	require.NoError(t, err)

	assert.False(t, env.isAuthenticated(t))
}

func TestSafeNext(t *testing.T) {
	for next, want := range map[string]string{
		"":                     "",
		"/users/profile/":      "/users/profile/",
		"/a?b=c":               "/a?b=c",
		"//evil.example":       "",
		"/\\evil.example":      "",
		"https://evil.example": "",
		"relative/path":        "",
	} {
		assert.Equal(t, want, safeNext(next), next)
	}
}
