package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/schollz/progressbar/v3"
)

// Config 压测配置
type Config struct {
	Target         string        // WebSocket URL
	Conns          int           // 总连接数
	UserBase       uint64        // 起始用户ID
	Devices        []string      // 每个用户登录的设备类型
	Duration       time.Duration // 压测持续时间
	Ramp           time.Duration // 爬坡时间
	PingInterval   time.Duration // 应用层心跳间隔，0 表示只依赖协议层 ping
	FollowRedirect bool          // 收到 redirect/not_responsible 时按下发地址重连
	Output         string        // text, json
	Verbose        bool
}

// Stats 统计数据
type Stats struct {
	mu sync.Mutex

	TotalAttempts int64
	SuccessConns  int64
	FailedConns   int64
	CurrentConns  int64
	Redirects     int64
	PingsSent     int64
	PongsReceived int64

	ConnLatencies []int64          // 纳秒
	CloseCodes    map[int]int64    // 服务端关闭码 -> 次数
	Errors        map[string]int64 // 握手失败原因

	StartTime time.Time
	EndTime   time.Time
}

// LatencyStats 延迟统计（毫秒）
type LatencyStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	StdDev float64 `json:"std_dev"`
}

// Result 压测结果
type Result struct {
	Target        string           `json:"target"`
	TotalAttempts int64            `json:"total_attempts"`
	SuccessConns  int64            `json:"success_conns"`
	FailedConns   int64            `json:"failed_conns"`
	SuccessRate   float64          `json:"success_rate_percent"`
	FinalConns    int64            `json:"final_conns"`
	Redirects     int64            `json:"redirects"`
	ConnLatency   LatencyStats     `json:"conn_latency_ms"`
	PingsSent     int64            `json:"pings_sent"`
	PongsReceived int64            `json:"pongs_received"`
	CloseCodes    map[string]int64 `json:"close_codes"`
	Errors        map[string]int64 `json:"errors"`
	ActualTime    float64          `json:"actual_time_seconds"`
}

type closeReason struct {
	Status   int    `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// 与服务端 CloseStatus 对应，关闭码 = 4000 + status
var closeNames = map[int]string{
	0: "disconnected_by_client",
	1: "disconnected_by_other_device",
	2: "heartbeat_timeout",
	3: "server_closed",
	4: "redirect",
	5: "server_error",
	6: "disconnected_by_admin",
	7: "not_responsible",
}

const maxRedirects = 3

func main() {
	cfg := parseFlags()

	fmt.Println("=== wsbench - 在线服务压测工具 ===")
	fmt.Printf("目标: %s\n", cfg.Target)
	fmt.Printf("连接数: %d (设备: %v)\n", cfg.Conns, cfg.Devices)
	fmt.Printf("持续时间: %s, 爬坡时间: %s\n\n", cfg.Duration, cfg.Ramp)

	stats := &Stats{
		CloseCodes: make(map[int]int64),
		Errors:     make(map[string]int64),
		StartTime:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n收到中断信号，正在关闭...")
		cancel()
	}()

	runBench(ctx, cfg, stats)
	stats.EndTime = time.Now()

	result := generateResult(cfg, stats)
	if cfg.Output == "json" {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}
	outputText(result)
}

func parseFlags() Config {
	cfg := Config{}
	var devices string

	flag.StringVar(&cfg.Target, "target", "ws://localhost:8084/ws", "WebSocket URL")
	flag.IntVar(&cfg.Conns, "conns", 1000, "总连接数")
	flag.Uint64Var(&cfg.UserBase, "user-base", 100000, "起始用户ID")
	flag.StringVar(&devices, "devices", "web", "逗号分隔的设备类型，每个用户按顺序轮流使用")
	flag.DurationVar(&cfg.Duration, "duration", 5*time.Minute, "压测持续时间")
	flag.DurationVar(&cfg.Ramp, "ramp", time.Minute, "爬坡时间")
	flag.DurationVar(&cfg.PingInterval, "ping-interval", 30*time.Second, "应用层心跳间隔")
	flag.BoolVar(&cfg.FollowRedirect, "follow-redirect", true, "按关闭帧中的地址重连")
	flag.StringVar(&cfg.Output, "output", "text", "输出格式: text, json")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "详细输出")
	flag.Parse()

	cfg.Devices = splitDevices(devices)
	if cfg.Ramp <= 0 {
		cfg.Ramp = time.Second
	}
	return cfg
}

func splitDevices(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = []string{"web"}
	}
	return out
}

func runBench(ctx context.Context, cfg Config, stats *Stats) {
	connsPerSecond := math.Max(float64(cfg.Conns)/cfg.Ramp.Seconds(), 1)
	fmt.Printf("爬坡速率: %.1f 连接/秒\n\n", connsPerSecond)

	bar := progressbar.NewOptions(cfg.Conns,
		progressbar.OptionSetDescription("建立连接"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("conn"),
	)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / connsPerSecond))
	defer ticker.Stop()

	var wg sync.WaitGroup
	for id := 0; id < cfg.Conns; id++ {
		select {
		case <-ctx.Done():
			id = cfg.Conns
			continue
		case <-ticker.C:
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			userID := cfg.UserBase + uint64(id/len(cfg.Devices))
			device := cfg.Devices[id%len(cfg.Devices)]
			conn := dial(ctx, cfg, stats, userID, device)
			_ = bar.Add(1)
			if conn != nil {
				hold(ctx, cfg, stats, conn)
			}
		}(id)
	}
	_ = bar.Finish()
	fmt.Println()

	report := time.NewTicker(10 * time.Second)
	defer report.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			return
		case <-report.C:
			printProgress(stats)
		}
	}
}

// dial 建立连接并等待 connected 帧，被重定向时按下发地址重连
func dial(ctx context.Context, cfg Config, stats *Stats, userID uint64, device string) *websocket.Conn {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	target := cfg.Target

	for attempt := 0; attempt <= maxRedirects; attempt++ {
		atomic.AddInt64(&stats.TotalAttempts, 1)
		start := time.Now()

		u, err := buildURL(target, userID, device)
		if err != nil {
			recordError(stats, "bad_target")
			return nil
		}
		conn, _, err := dialer.DialContext(ctx, u, nil)
		if err != nil {
			atomic.AddInt64(&stats.FailedConns, 1)
			recordError(stats, err.Error())
			if cfg.Verbose {
				fmt.Printf("用户 %d/%s 连接失败: %v\n", userID, device, err)
			}
			return nil
		}

		// 第一帧是 connected 或者关闭帧
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, _, err = conn.ReadMessage()
		if err == nil {
			stats.mu.Lock()
			stats.ConnLatencies = append(stats.ConnLatencies, time.Since(start).Nanoseconds())
			stats.mu.Unlock()
			atomic.AddInt64(&stats.SuccessConns, 1)
			atomic.AddInt64(&stats.CurrentConns, 1)
			return conn
		}

		_ = conn.Close()
		code, reason := recordClose(stats, err)
		if !cfg.FollowRedirect || reason.Redirect == "" || (code != 4004 && code != 4007) {
			atomic.AddInt64(&stats.FailedConns, 1)
			return nil
		}
		atomic.AddInt64(&stats.Redirects, 1)
		target = reason.Redirect
	}
	atomic.AddInt64(&stats.FailedConns, 1)
	recordError(stats, "too_many_redirects")
	return nil
}

func buildURL(target string, userID uint64, device string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("user_id", strconv.FormatUint(userID, 10))
	q.Set("device_type", device)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// hold 维持连接直到压测结束或服务端关闭
func hold(ctx context.Context, cfg Config, stats *Stats, conn *websocket.Conn) {
	defer atomic.AddInt64(&stats.CurrentConns, -1)

	var writeMu sync.Mutex
	conn.SetPingHandler(func(appData string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(3 * max(cfg.PingInterval, 30*time.Second)))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					recordClose(stats, err)
				}
				return
			}
			var frame struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(msg, &frame) == nil && frame.Type == "pong" {
				atomic.AddInt64(&stats.PongsReceived, 1)
			}
		}
	}()

	var pingC <-chan time.Time
	if cfg.PingInterval > 0 {
		t := time.NewTicker(cfg.PingInterval)
		defer t.Stop()
		pingC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			writeMu.Unlock()
			_ = conn.Close()
			<-readDone
			return
		case <-readDone:
			_ = conn.Close()
			return
		case <-pingC:
			data, _ := json.Marshal(map[string]any{"type": "ping", "ts": time.Now().UnixMilli()})
			writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := conn.WriteMessage(websocket.TextMessage, data)
			writeMu.Unlock()
			if err != nil {
				recordError(stats, "ping_failed")
				continue
			}
			atomic.AddInt64(&stats.PingsSent, 1)
		}
	}
}

func recordClose(stats *Stats, err error) (int, closeReason) {
	var reason closeReason
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		recordError(stats, "read: "+err.Error())
		return 0, reason
	}
	_ = json.Unmarshal([]byte(ce.Text), &reason)

	stats.mu.Lock()
	stats.CloseCodes[ce.Code]++
	stats.mu.Unlock()
	return ce.Code, reason
}

func recordError(stats *Stats, msg string) {
	if len(msg) > 50 {
		msg = msg[:50]
	}
	stats.mu.Lock()
	stats.Errors[msg]++
	stats.mu.Unlock()
}

func printProgress(stats *Stats) {
	fmt.Printf("[%s] 当前连接: %d | 成功: %d | 失败: %d | 重定向: %d | Ping/Pong: %d/%d\n",
		time.Since(stats.StartTime).Round(time.Second),
		atomic.LoadInt64(&stats.CurrentConns),
		atomic.LoadInt64(&stats.SuccessConns),
		atomic.LoadInt64(&stats.FailedConns),
		atomic.LoadInt64(&stats.Redirects),
		atomic.LoadInt64(&stats.PingsSent),
		atomic.LoadInt64(&stats.PongsReceived))
}

func closeCodeName(code int) string {
	if name, ok := closeNames[code-4000]; ok {
		return fmt.Sprintf("%d %s", code, name)
	}
	return strconv.Itoa(code)
}

func generateResult(cfg Config, stats *Stats) Result {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	result := Result{
		Target:        cfg.Target,
		TotalAttempts: stats.TotalAttempts,
		SuccessConns:  stats.SuccessConns,
		FailedConns:   stats.FailedConns,
		FinalConns:    stats.CurrentConns,
		Redirects:     stats.Redirects,
		ConnLatency:   calculateLatencyStats(stats.ConnLatencies),
		PingsSent:     stats.PingsSent,
		PongsReceived: stats.PongsReceived,
		CloseCodes:    make(map[string]int64, len(stats.CloseCodes)),
		Errors:        stats.Errors,
		ActualTime:    stats.EndTime.Sub(stats.StartTime).Seconds(),
	}
	if stats.TotalAttempts > 0 {
		result.SuccessRate = float64(stats.SuccessConns) / float64(stats.TotalAttempts) * 100
	}
	for code, n := range stats.CloseCodes {
		result.CloseCodes[closeCodeName(code)] = n
	}
	return result
}

func calculateLatencyStats(latencies []int64) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}

	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	toMs := func(ns float64) float64 { return ns / 1e6 }
	pct := func(p int) float64 { return toMs(float64(sorted[len(sorted)*p/100])) }

	var sum float64
	for _, v := range sorted {
		sum += float64(v)
	}
	avg := sum / float64(len(sorted))

	var variance float64
	for _, v := range sorted {
		diff := float64(v) - avg
		variance += diff * diff
	}
	variance /= float64(len(sorted))

	return LatencyStats{
		Min:    toMs(float64(sorted[0])),
		Max:    toMs(float64(sorted[len(sorted)-1])),
		Avg:    toMs(avg),
		P50:    pct(50),
		P90:    pct(90),
		P95:    pct(95),
		P99:    pct(99),
		StdDev: toMs(math.Sqrt(variance)),
	}
}

func outputText(result Result) {
	fmt.Println()
	fmt.Println("==================== 压测结果 ====================")
	fmt.Println()
	fmt.Println("--- 连接统计 ---")
	fmt.Printf("尝试连接数:     %d\n", result.TotalAttempts)
	fmt.Printf("成功连接数:     %d\n", result.SuccessConns)
	fmt.Printf("失败连接数:     %d\n", result.FailedConns)
	fmt.Printf("连接成功率:     %.2f%%\n", result.SuccessRate)
	fmt.Printf("重定向次数:     %d\n", result.Redirects)
	fmt.Printf("最终连接数:     %d\n", result.FinalConns)
	fmt.Println()

	fmt.Println("--- 连接延迟 (ms) ---")
	fmt.Printf("Min:    %.2f\n", result.ConnLatency.Min)
	fmt.Printf("Max:    %.2f\n", result.ConnLatency.Max)
	fmt.Printf("Avg:    %.2f\n", result.ConnLatency.Avg)
	fmt.Printf("P50:    %.2f\n", result.ConnLatency.P50)
	fmt.Printf("P90:    %.2f\n", result.ConnLatency.P90)
	fmt.Printf("P95:    %.2f\n", result.ConnLatency.P95)
	fmt.Printf("P99:    %.2f\n", result.ConnLatency.P99)
	fmt.Printf("StdDev: %.2f\n", result.ConnLatency.StdDev)
	fmt.Println()

	fmt.Println("--- 心跳统计 ---")
	fmt.Printf("发送 Ping 数:   %d\n", result.PingsSent)
	fmt.Printf("接收 Pong 数:   %d\n", result.PongsReceived)
	fmt.Println()

	if len(result.CloseCodes) > 0 {
		fmt.Println("--- 服务端关闭码 ---")
		for code, n := range result.CloseCodes {
			fmt.Printf("%s: %d\n", code, n)
		}
		fmt.Println()
	}

	if len(result.Errors) > 0 {
		fmt.Println("--- 错误统计 ---")
		for err, count := range result.Errors {
			fmt.Printf("%s: %d\n", err, count)
		}
		fmt.Println()
	}

	fmt.Printf("--- 运行时间: %.2f 秒 ---\n", result.ActualTime)
	fmt.Println("=================================================")
}
