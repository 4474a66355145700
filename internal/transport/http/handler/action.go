package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"go-gin-gorm-accounts/internal/domain"
	mdw "go-gin-gorm-accounts/internal/transport/http/middleware"
	resp "go-gin-gorm-accounts/internal/transport/http/response"
)

/* ================== 轻封装 ================== */

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

/* ================== Action（一行注册） ================== */

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 严格 JSON：未知字段直接拒绝
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// 统一错误对象（配合 resp.Error(int, msg)）
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method string // "GET" | "POST" | "PATCH" | "DELETE"
	Path   string // 例："/auth/login"、"/users/:id"
	Binder Binder
	Auth   bool // 要求已登录（AuthJWT 已放入 caller）
	// Status 成功时的 HTTP 状态，默认 200；204 时不输出 body
	Status  int
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 登录校验；角色与归属由 service.Guard 判定
		if a.Auth && !mdw.CallerFrom(c).Authenticated() {
			resp.Abort(c, resp.CodeUnauthorized, "unauthorized")
			return
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = bindStrictJSON(c, &in)
		case BindQuery:
			if err := c.ShouldBindQuery(&in); err != nil {
				bindErr = &AErr{Code: resp.CodeBadRequest, Msg: err.Error(), Err: domain.ErrInvalidInput}
			}
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			writeError(c, bindErr)
			return
		}

		// 3) 执行
		out, err := a.Handler(c, &in)

		// 4) 统一错误映射
		if err != nil {
			writeError(c, err)
			return
		}
		status := a.Status
		if status == 0 {
			status = http.StatusOK
		}
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		c.JSON(status, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

func bindStrictJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil {
		return domain.ErrInvalidInput
	}
	if err := domain.DecodeStrict(c.Request.Body, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &AErr{Code: resp.CodeTooLarge, Msg: "request body too large", Err: err}
		}
		return err
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return &AErr{Code: resp.CodeBadRequest, Msg: err.Error(), Err: domain.ErrInvalidInput}
	}
	return nil
}

// errorCode maps domain errors onto envelope codes. The message of a 5xx
// never leaves the process.
func errorCode(err error) (int, string) {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae.Code, ae.Error()
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrDisallowedField),
		errors.Is(err, domain.ErrInvalidCredential):
		return resp.CodeBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return resp.CodeUnauthorized, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return resp.CodeForbidden, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return resp.CodeNotFound, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return resp.CodeConflict, err.Error()
	}
	return resp.CodeServerError, ""
}

func writeError(c *gin.Context, err error) {
	code, msg := errorCode(err)
	if code >= 500 {
		// AccessLog / gin 错误链里留底
		ge := c.Error(err)
		if domain.IsStoreError(err) {
			ge.SetMeta("store")
		}
	}
	resp.Abort(c, code, msg)
}
