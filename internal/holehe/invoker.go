package holehe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/fachebot/holehe-bot/internal/config"
	"github.com/fachebot/holehe-bot/internal/logger"

	"golang.org/x/sync/semaphore"
)

const (
	defaultTimeout        = 120 * time.Second
	defaultMaxOutputBytes = 1 << 20
	waitDelay             = 2 * time.Second
)

// Invoker 以邮箱为唯一位置参数运行 holehe，不经过 shell
type Invoker struct {
	path           string
	args           []string
	timeout        time.Duration
	maxOutputBytes int
	sem            *semaphore.Weighted
}

func NewInvoker(cfg *config.Holehe) *Invoker {
	inv := &Invoker{
		path:           cfg.Path,
		args:           append([]string(nil), cfg.Args...),
		timeout:        cfg.Timeout(),
		maxOutputBytes: cfg.MaxOutputBytes,
	}
	if inv.path == "" {
		inv.path = config.DefaultHolehePath
	}
	if inv.timeout <= 0 {
		inv.timeout = defaultTimeout
	}
	if inv.maxOutputBytes <= 0 {
		inv.maxOutputBytes = defaultMaxOutputBytes
	}
	if cfg.MaxConcurrent > 0 {
		inv.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return inv
}

// Path 返回 holehe 可执行文件路径
func (inv *Invoker) Path() string {
	return inv.path
}

// Invoke 执行一次检查。超时或等待并发槽位时 ctx 被取消都会返回 StatusTimeout
func (inv *Invoker) Invoke(ctx context.Context, email string) *Result {
	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	if inv.sem != nil {
		if err := inv.sem.Acquire(runCtx, 1); err != nil {
			return &Result{Status: StatusTimeout, ExitCode: -1, Err: fmt.Errorf("等待执行槽位超时: %w", err)}
		}
		defer inv.sem.Release(1)
	}

	// "--" 之后的邮箱总是位置参数，以 - 开头时也不会被当作选项
	args := make([]string, 0, len(inv.args)+2)
	args = append(args, inv.args...)
	args = append(args, "--", email)

	cmd := exec.CommandContext(runCtx, inv.path, args...)
	// 进程被 kill 后，子进程仍可能持有管道，限制等待时间
	cmd.WaitDelay = waitDelay

	var stdout limitedBuffer
	var stderr limitedBuffer
	stdout.Limit = inv.maxOutputBytes
	stderr.Limit = inv.maxOutputBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:          string(bytes.ToValidUTF8(stdout.Bytes(), []byte("�"))),
		Stderr:          string(bytes.ToValidUTF8(stderr.Bytes(), []byte("�"))),
		StdoutTruncated: stdout.Truncated,
		StderrTruncated: stderr.Truncated,
		Elapsed:         time.Since(start),
	}

	if stdout.Truncated {
		logger.Warnf("[Holehe] stdout 超过 %d 字节，已截断", inv.maxOutputBytes)
	}

	if err == nil {
		result.Status = StatusSuccess
		return result
	}

	// 超时与取消的判断优先于退出码：被 kill 的进程同样表现为 ExitError
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.Status = StatusTimeout
		result.ExitCode = -1
		result.Err = fmt.Errorf("holehe 执行超过 %s", inv.timeout)
		return result
	}

	if runCtx.Err() != nil {
		result.Status = StatusTimeout
		result.ExitCode = -1
		result.Err = fmt.Errorf("holehe 执行被取消: %w", runCtx.Err())
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.Status = StatusProcessFailed
		result.ExitCode = exitErr.ExitCode()
		return result
	}

	result.Status = StatusSpawnError
	result.ExitCode = -1
	result.Err = fmt.Errorf("启动 holehe 失败: %w", err)
	return result
}

// limitedBuffer 超出上限的写入被丢弃并标记 Truncated，保证子进程不会因管道阻塞
type limitedBuffer struct {
	Limit     int
	Truncated bool
	buf       bytes.Buffer
}

func (w *limitedBuffer) Write(p []byte) (int, error) {
	if w.Limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.Limit - w.buf.Len()
	if remaining <= 0 {
		w.Truncated = true
		return len(p), nil
	}
	if len(p) <= remaining {
		return w.buf.Write(p)
	}
	_, _ = w.buf.Write(p[:remaining])
	w.Truncated = true
	return len(p), nil
}

func (w *limitedBuffer) Bytes() []byte {
	return w.buf.Bytes()
}
