package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"go-gin-gorm-accounts/internal/core/config"
	"go-gin-gorm-accounts/internal/core/server"
	mdw "go-gin-gorm-accounts/internal/transport/http/middleware"
)

type Options struct {
	Name           string
	Mode           string
	AllowedOrigins []string
	Limits         config.Limits
}

// NewAPIEngine 用户端：/api/v1
func NewAPIEngine(l *zap.Logger, o Options, reg *Registry) *gin.Engine {
	r := server.NewRouter(l, server.Options{Name: o.Name, Mode: o.Mode, AllowedOrigins: o.AllowedOrigins})
	r.Use(stack(l, o.Limits)...)

	// 前缀
	api := r.Group("/api/v1")
	reg.MountAPI(api)
	return r
}

// stack 两端共用的中间件链；限额为 0 的项不挂
func stack(l *zap.Logger, lim config.Limits) []gin.HandlerFunc {
	hs := []gin.HandlerFunc{mdw.RequestID(), mdw.AccessLog(l), mdw.Metrics()}
	if lim.RPS > 0 {
		hs = append(hs, mdw.RateLimit(rate.Limit(lim.RPS), lim.Burst))
	}
	if lim.PerIPRPS > 0 {
		hs = append(hs, mdw.RateLimitPerIP(rate.Limit(lim.PerIPRPS), lim.PerIPBurst, 10*time.Minute))
	}
	if lim.MaxConcurrent > 0 {
		hs = append(hs, mdw.ConcurrencyLimit(lim.MaxConcurrent))
	}
	if lim.MaxBodyBytes > 0 {
		hs = append(hs, mdw.MaxBodyBytes(lim.MaxBodyBytes))
	}
	if lim.RequestTimeoutSec > 0 {
		hs = append(hs, mdw.Timeout(time.Duration(lim.RequestTimeoutSec)*time.Second))
	}
	return hs
}
