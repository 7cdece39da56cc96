// Package http 节点对外的 HTTP 入口：WebSocket 升级、健康检查、统计和指标
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/in"
)

// SlotReporter 当前视图下每个节点负责的槽位数
type SlotReporter interface {
	SlotsPerNode() map[string]int
}

// RouterDeps 路由依赖
type RouterDeps struct {
	Presence  in.PresenceUseCase
	Slots     SlotReporter
	WebSocket http.HandlerFunc
	Gatherer  prometheus.Gatherer
}

// NewRouter 注册全部路由
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), zlog.GinLogger())

	r.GET("/ws", gin.WrapF(deps.WebSocket))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/stats", func(c *gin.Context) {
		resp := gin.H{"code": 0, "data": deps.Presence.Stats()}
		if deps.Slots != nil {
			resp["slots"] = deps.Slots.SlotsPerNode()
		}
		c.JSON(http.StatusOK, resp)
	})

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	level := zlog.LevelHandler()
	r.GET("/log/level", level)
	r.PUT("/log/level", level)

	return r
}
