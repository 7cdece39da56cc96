package zlog

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var dynamicLevel = zap.NewAtomicLevel() // 全局可变级别
var levelName atomic.Value              // 存一下字符串形式

func initLevel(lvl string) {
	levelName.Store(lvl)
	dynamicLevel.SetLevel(parseLevel(lvl))
}

// parseLevel 将字符串转 zapcore.Level
func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func validLevel(lvl string) bool {
	switch strings.ToLower(lvl) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// SetLevel 热更新日志级别
func SetLevel(lvl string) {
	dynamicLevel.SetLevel(parseLevel(lvl))
	levelName.Store(strings.ToLower(lvl))
}

// GetLevel 返回当前级别字符串
func GetLevel() string {
	if v, ok := levelName.Load().(string); ok {
		return v
	}
	return "info"
}

// LevelHandler 注册到 /log/level，GET 查询，PUT ?v=debug 修改
func LevelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPut {
			c.JSON(http.StatusOK, gin.H{"level": GetLevel()})
			return
		}

		lvl := c.Query("v")
		if lvl == "" {
			lvl = c.PostForm("v")
		}
		if !validLevel(lvl) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be one of debug/info/warn/error"})
			return
		}
		SetLevel(lvl)
		zap.L().Info("log level changed", zap.String("now", GetLevel()))
		c.JSON(http.StatusOK, gin.H{"level": GetLevel()})
	}
}
