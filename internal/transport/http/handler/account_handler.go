package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-gin-gorm-accounts/internal/domain"
	"go-gin-gorm-accounts/internal/service"
	mdw "go-gin-gorm-accounts/internal/transport/http/middleware"
)

// AccountHandler serves /api/v1. It decodes requests and hands them to
// service.Secured; nothing here makes an access decision.
type AccountHandler struct {
	svc             *service.Secured
	auth            gin.HandlerFunc
	defaultPageSize int
}

func NewAccountHandler(svc *service.Secured, auth gin.HandlerFunc, defaultPageSize int) *AccountHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	return &AccountHandler{svc: svc, auth: auth, defaultPageSize: defaultPageSize}
}

type registerIn struct {
	Email       string  `json:"email"       binding:"required,email"`
	Password    string  `json:"password"    binding:"required,min=8,max=72"`
	DisplayName *string `json:"displayName" binding:"omitempty,max=64"`
}

// privilegedIn is registerIn plus role.
type privilegedIn struct {
	registerIn
	Role *string `json:"role" binding:"omitempty"`
}

func (in *privilegedIn) toInput() (domain.NewAccountInput, error) {
	out := domain.NewAccountInput{Email: in.Email, Password: in.Password, DisplayName: in.DisplayName}
	if in.Role != nil {
		r, ok := domain.ParseRole(*in.Role)
		if !ok {
			return out, BadRequest("unknown role " + *in.Role)
		}
		out.Role = &r
	}
	return out, nil
}

type loginIn struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type credentialIn struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword"     binding:"required,min=8,max=72"`
}

type pageQ struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"pageSize"`
	Role     string `form:"role"`
	Q        string `form:"q"`
	Sort     string `form:"sort"` // createdAt | -createdAt | email | -email
}

func (q *pageQ) filter() (domain.Filter, domain.Ordering, error) {
	var f domain.Filter
	if q.Role != "" {
		r, ok := domain.ParseRole(q.Role)
		if !ok {
			return f, domain.Ordering{}, BadRequest("unknown role " + q.Role)
		}
		f.Role = &r
	}
	f.EmailContains = strings.TrimSpace(q.Q)

	var o domain.Ordering
	sort := q.Sort
	if strings.HasPrefix(sort, "-") {
		o.Desc = true
		sort = sort[1:]
	}
	switch {
	case q.Sort == "":
		o = domain.NewestFirst
		return f, o, nil
	case sort == "":
		// "-" alone names no field
		return f, o, BadRequest("unknown sort " + q.Sort)
	}
	switch sort {
	case "createdAt":
		o.Field = domain.SortCreatedAt
	case "email":
		o.Field = domain.SortEmail
	default:
		return f, o, BadRequest("unknown sort " + q.Sort)
	}
	return f, o, nil
}

func (h *AccountHandler) Priority() int { return 10 }

func (h *AccountHandler) MountAPI(api *gin.RouterGroup) {
	public := New(api)

	RegisterAction(public, Action[registerIn, *domain.AuthResult]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *registerIn) (*domain.AuthResult, error) {
			return h.svc.Register(c.Request.Context(), domain.NewAccountInput{
				Email: in.Email, Password: in.Password, DisplayName: in.DisplayName,
			})
		},
	})

	RegisterAction(public, Action[loginIn, *domain.AuthResult]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (*domain.AuthResult, error) {
			return h.svc.Login(c.Request.Context(), in.Email, in.Password)
		},
	})

	// 鉴权分组
	authed := New(api.Group("", h.auth))

	RegisterAction(authed, Action[struct{}, *domain.Account]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Account, error) {
			return h.svc.Me(c.Request.Context(), mdw.CallerFrom(c))
		},
	})

	RegisterAction(authed, Action[pageQ, *domain.Page]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, q *pageQ) (*domain.Page, error) {
			f, o, err := q.filter()
			if err != nil {
				return nil, err
			}
			if q.PageSize == 0 {
				q.PageSize = h.defaultPageSize
			}
			return h.svc.ListPage(c.Request.Context(), mdw.CallerFrom(c), q.Page, q.PageSize, f, o)
		},
	})

	RegisterAction(authed, Action[privilegedIn, *domain.Account]{
		Method: http.MethodPost,
		Path:   "/users/admin",
		Binder: BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *privilegedIn) (*domain.Account, error) {
			input, err := in.toInput()
			if err != nil {
				return nil, err
			}
			return h.svc.CreatePrivileged(c.Request.Context(), mdw.CallerFrom(c), input)
		},
	})

	RegisterAction(authed, Action[struct{}, *domain.Account]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Account, error) {
			return h.svc.GetByID(c.Request.Context(), mdw.CallerFrom(c), c.Param("id"))
		},
	})

	RegisterAction(authed, Action[domain.ProfileFields, *domain.Account]{
		Method: http.MethodPatch,
		Path:   "/users/:id",
		Binder: BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *domain.ProfileFields) (*domain.Account, error) {
			return h.svc.UpdateProfile(c.Request.Context(), mdw.CallerFrom(c), c.Param("id"), *in)
		},
	})

	RegisterAction(authed, Action[credentialIn, *domain.Account]{
		Method: http.MethodPatch,
		Path:   "/users/:id/password",
		Binder: BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *credentialIn) (*domain.Account, error) {
			return h.svc.UpdateCredential(c.Request.Context(), mdw.CallerFrom(c), c.Param("id"), in.CurrentPassword, in.NewPassword)
		},
	})

	RegisterAction(authed, Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: BindNone,
		Auth:   true,
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			_, err := h.svc.Remove(c.Request.Context(), mdw.CallerFrom(c), c.Param("id"))
			return struct{}{}, err
		},
	})
}
