// internal/transport/http/router/admin.go
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-gin-gorm-accounts/internal/core/auth"
	"go-gin-gorm-accounts/internal/core/server"
	"go-gin-gorm-accounts/internal/domain"
	mdw "go-gin-gorm-accounts/internal/transport/http/middleware"
)

func NewAdminEngine(l *zap.Logger, o Options, jwter *auth.JWTer, reg *Registry) *gin.Engine {
	r := server.NewRouter(l, server.Options{Name: o.Name + "-admin", Mode: o.Mode, AllowedOrigins: o.AllowedOrigins})
	r.Use(stack(l, o.Limits)...)

	// 管理端 v1（统一要求 admin 角色）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, domain.RoleAdmin))
	reg.MountAdmin(admin)
	return r
}
