package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"go-gin-gorm-accounts/internal/core/auth"
	"go-gin-gorm-accounts/internal/domain"
	"go-gin-gorm-accounts/internal/repo"
	"go-gin-gorm-accounts/internal/service"
	"go-gin-gorm-accounts/internal/testutil"
	mdw "go-gin-gorm-accounts/internal/transport/http/middleware"
	"go-gin-gorm-accounts/pkg/utils"
)

func init() { gin.SetMode(gin.TestMode) }

const secret = "0123456789abcdef0123456789abcdef"

type env struct {
	r   *gin.Engine
	svc *service.AccountService
	jwt *auth.JWTer
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newEnv(t *testing.T) *env {
	t.Helper()
	l := zaptest.NewLogger(t)
	db := testutil.NewDB(t)
	rp := repo.NewAccountRepo(repo.NewTombstoneStore(db, nil), utils.NewID)
	j := auth.NewJWTer(secret, "accounts", time.Hour)
	svc := service.NewAccountService(service.Deps{
		Repo:   rp,
		Hasher: utils.NewBcryptHasher(bcrypt.MinCost),
		Tokens: j,
		Log:    l,
	}, service.Options{EmailCaseInsensitive: true, MaxPageSize: 50})
	sec := service.NewSecured(svc, service.NewGuard(nil, l), rp)

	r := gin.New()
	r.Use(mdw.MaxBodyBytes(1 << 10))
	NewAccountHandler(sec, mdw.AuthJWT(j, ""), 10).MountAPI(r.Group("/api/v1"))
	NewAdminHandler(sec, 10).MountAdmin(r.Group("/admin/v1", mdw.AuthJWT(j, domain.RoleAdmin)))
	return &env{r: r, svc: svc, jwt: j}
}

func (e *env) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rq *http.Request
	if body != "" {
		rq = httptest.NewRequest(method, path, strings.NewReader(body))
		rq.Header.Set("Content-Type", "application/json")
	} else {
		rq = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		rq.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, rq)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// register returns the new account and its token.
func (e *env) register(t *testing.T, email string) (domain.Account, string) {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"`+email+`","password":"pw123456"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res domain.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res.Account, res.Token
}

func (e *env) adminToken(t *testing.T) string {
	t.Helper()
	role := domain.RoleAdmin
	acc, err := e.svc.CreatePrivileged(context.Background(), domain.NewAccountInput{
		Email: "root@x.com", Password: "pw123456", Role: &role,
	})
	require.NoError(t, err)
	tok, err := e.jwt.Issue(acc.ID, acc.Email, string(acc.Role))
	require.NoError(t, err)
	return tok
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)

	w, env := e.do(t, http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"Alice@X.com","password":"pw123456","displayName":"Alice"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 0, env.Code)
	assert.NotContains(t, w.Body.String(), "$2a$")
	assert.NotContains(t, w.Body.String(), "password")

	var res domain.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "alice@x.com", res.Account.Email)
	assert.Equal(t, domain.RoleUser, res.Account.Role)
	assert.NotEmpty(t, res.Token)

	w, _ = e.do(t, http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"alice@x.com","password":"pw123456"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = e.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"alice@x.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 401, env.Code)

	w, env = e.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"ALICE@x.com","password":"pw123456"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.Token)
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestRegisterRejectsBadInput(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"role is not accepted", `{"email":"a@x.com","password":"pw123456","role":"ADMIN"}`, http.StatusBadRequest},
		{"unknown field", `{"email":"a@x.com","password":"pw123456","isAdmin":true}`, http.StatusBadRequest},
		{"bad email", `{"email":"nope","password":"pw123456"}`, http.StatusBadRequest},
		{"short password", `{"email":"a@x.com","password":"short"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"not json", `{"email":`, http.StatusBadRequest},
		{"too large", `{"email":"a@x.com","password":"` + strings.Repeat("x", 2<<10) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := e.do(t, http.MethodPost, "/api/v1/auth/register", "", tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.Equal(t, tc.want, env.Code)
		})
	}

	// nothing was created along the way
	_, tok := e.register(t, "a@x.com")
	assert.NotEmpty(t, tok)
}

func TestMeAndOwnership(t *testing.T) {
	e := newEnv(t)
	self, tok := e.register(t, "self@x.com")
	other, _ := e.register(t, "other@x.com")

	w, _ := e.do(t, http.MethodGet, "/api/v1/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := e.do(t, http.MethodGet, "/api/v1/me", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Account
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, self.ID, got.ID)

	w, _ = e.do(t, http.MethodGet, "/api/v1/users/"+self.ID, tok, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodGet, "/api/v1/users/"+other.ID, tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = e.do(t, http.MethodPatch, "/api/v1/users/"+other.ID, tok, `{"displayName":"x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = e.do(t, http.MethodDelete, "/api/v1/users/"+other.ID, tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = e.do(t, http.MethodGet, "/api/v1/users", tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/v1/users/admin", tok, `{"email":"n@x.com","password":"pw123456","role":"ADMIN"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	self, tok := e.register(t, "self@x.com")
	e.register(t, "taken@x.com")
	path := "/api/v1/users/" + self.ID

	w, _ := e.do(t, http.MethodPatch, path, tok, `{"role":"ADMIN"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPatch, path, tok, `{"email":"taken@x.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env := e.do(t, http.MethodPatch, path, tok, `{"displayName":"Self"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got domain.Account
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.NotNil(t, got.DisplayName)
	assert.Equal(t, "Self", *got.DisplayName)
	assert.Equal(t, domain.RoleUser, got.Role)
}

func TestUpdateCredential(t *testing.T) {
	e := newEnv(t)
	self, tok := e.register(t, "self@x.com")
	path := "/api/v1/users/" + self.ID + "/password"

	w, env := e.do(t, http.MethodPatch, path, tok, `{"currentPassword":"wrong-one","newPassword":"pw-next-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrInvalidCredential.Error(), env.Msg)

	w, _ = e.do(t, http.MethodPatch, path, tok, `{"currentPassword":"pw123456","newPassword":"pw-next-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "$2a$")

	w, _ = e.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"self@x.com","password":"pw-next-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"self@x.com","password":"pw123456"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRemoveSelf(t *testing.T) {
	e := newEnv(t)
	self, tok := e.register(t, "self@x.com")

	w, _ := e.do(t, http.MethodDelete, "/api/v1/users/"+self.ID, tok, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())

	w, _ = e.do(t, http.MethodGet, "/api/v1/me", tok, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = e.do(t, http.MethodDelete, "/api/v1/users/"+self.ID, tok, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// the email is free again
	e.register(t, "self@x.com")
}

func TestAdminListing(t *testing.T) {
	e := newEnv(t)
	admin := e.adminToken(t)
	for _, m := range []string{"a@x.com", "b@x.com", "c@y.com"} {
		e.register(t, m)
	}

	w, env := e.do(t, http.MethodGet, "/api/v1/users?page=1&pageSize=2", admin, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page domain.Page
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 4, page.Total)
	assert.Len(t, page.Accounts, 2)
	assert.Equal(t, 2, page.TotalPages)

	w, env = e.do(t, http.MethodGet, "/api/v1/users?q=x.com&role=user&sort=email", admin, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Accounts, 2)
	assert.Equal(t, "a@x.com", page.Accounts[0].Email)
	assert.Equal(t, "b@x.com", page.Accounts[1].Email)

	for _, q := range []string{"?sort=password_hash", "?sort=-", "?role=root", "?page=abc", "?page=0"} {
		w, _ = e.do(t, http.MethodGet, "/api/v1/users"+q, admin, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w, env = e.do(t, http.MethodPost, "/api/v1/users/admin", admin,
		`{"email":"mod@x.com","password":"pw123456","role":"moderator"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var acc domain.Account
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	assert.Equal(t, domain.RoleModerator, acc.Role)
}

func TestAdminGroup(t *testing.T) {
	e := newEnv(t)
	admin := e.adminToken(t)
	victim, userTok := e.register(t, "victim@x.com")

	w, _ := e.do(t, http.MethodGet, "/admin/v1/accounts", userTok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(t, http.MethodDelete, "/admin/v1/accounts/"+victim.ID, admin, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := e.do(t, http.MethodGet, "/admin/v1/accounts/tombstoned", admin, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page domain.Page
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Accounts, 1)
	assert.Equal(t, victim.ID, page.Accounts[0].ID)
	assert.NotNil(t, page.Accounts[0].DeletedAt)

	w, env = e.do(t, http.MethodGet, "/admin/v1/accounts", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total) // only the admin is live

	w, _ = e.do(t, http.MethodPost, "/admin/v1/accounts", admin,
		`{"email":"ops@x.com","password":"pw123456","role":"ADMIN"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}
