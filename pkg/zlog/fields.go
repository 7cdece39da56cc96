package zlog

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext 把带请求字段的 logger 放进 ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext 取出 ctx 中的 logger，没有时返回全局 logger
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.L()
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.L()
}

// C 是简写，常在业务层使用
func C(ctx context.Context) *zap.Logger { return FromContext(ctx) }

// 业务字段，统一 key 便于检索

func UserID(id uint64) zap.Field {
	return zap.Uint64("user_id", id)
}

func UserIDs(ids []uint64) zap.Field {
	return zap.Uint64s("user_ids", ids)
}

func Device(d string) zap.Field {
	return zap.String("device", d)
}

func Node(id string) zap.Field {
	return zap.String("node", id)
}

func Slot(s int) zap.Field {
	return zap.Int("slot", s)
}

func TraceID(id string) zap.Field {
	return zap.String("trace_id", id)
}
