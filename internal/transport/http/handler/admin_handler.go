package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-gin-gorm-accounts/internal/domain"
	"go-gin-gorm-accounts/internal/service"
	mdw "go-gin-gorm-accounts/internal/transport/http/middleware"
)

// AdminHandler serves /admin/v1. The group is already restricted to the
// admin role; the guard still decides each operation.
type AdminHandler struct {
	svc             *service.Secured
	defaultPageSize int
}

func NewAdminHandler(svc *service.Secured, defaultPageSize int) *AdminHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	return &AdminHandler{svc: svc, defaultPageSize: defaultPageSize}
}

type tombstonedQ struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"pageSize"`
}

func (h *AdminHandler) Priority() int { return 10 }

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	ez := New(admin)

	RegisterAction(ez, Action[pageQ, *domain.Page]{
		Method: http.MethodGet,
		Path:   "/accounts",
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

	RegisterAction(ez, Action[privilegedIn, *domain.Account]{
		Method: http.MethodPost,
		Path:   "/accounts",
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

	// 已删除（墓碑）账号审计
	RegisterAction(ez, Action[tombstonedQ, *domain.Page]{
		Method: http.MethodGet,
		Path:   "/accounts/tombstoned",
		Binder: BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, q *tombstonedQ) (*domain.Page, error) {
			if q.PageSize == 0 {
				q.PageSize = h.defaultPageSize
			}
			return h.svc.ListTombstoned(c.Request.Context(), mdw.CallerFrom(c), q.Page, q.PageSize)
		},
	})

	RegisterAction(ez, Action[struct{}, *domain.Account]{
		Method: http.MethodDelete,
		Path:   "/accounts/:id",
		Binder: BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Account, error) {
			return h.svc.Remove(c.Request.Context(), mdw.CallerFrom(c), c.Param("id"))
		},
	})
}
