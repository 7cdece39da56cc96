// Package timer 共享的分层时间轮，心跳检查和延迟关闭都挂在这里
package timer

import (
	"time"

	"github.com/RussellLuo/timingwheel"

	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const (
	DefaultTick      = 100 * time.Millisecond
	DefaultWheelSize = 512
)

// Wheel 时间轮定时器设施
type Wheel struct {
	tw *timingwheel.TimingWheel
}

var _ out.Scheduler = (*Wheel)(nil)

// NewWheel 创建并启动时间轮
func NewWheel(tick time.Duration, wheelSize int64) *Wheel {
	if tick <= 0 {
		tick = DefaultTick
	}
	if wheelSize <= 0 {
		wheelSize = DefaultWheelSize
	}
	tw := timingwheel.NewTimingWheel(tick, wheelSize)
	tw.Start()
	return &Wheel{tw: tw}
}

// AfterFunc d 之后在独立 goroutine 中执行 f
func (w *Wheel) AfterFunc(d time.Duration, f func()) out.Timer {
	return w.tw.AfterFunc(d, f)
}

// Stop 停止时间轮，未触发的任务不再执行
func (w *Wheel) Stop() {
	w.tw.Stop()
}
