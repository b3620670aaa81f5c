package holehe

import (
	"fmt"
	"strings"
	"time"
)

// Status 一次 holehe 执行的结果分类
type Status int

const (
	StatusSuccess Status = iota
	StatusProcessFailed
	StatusTimeout
	StatusSpawnError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusProcessFailed:
		return "process_failed"
	case StatusTimeout:
		return "timeout"
	case StatusSpawnError:
		return "spawn_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result 一次执行的完整输出。退出码只作为数据返回，是否容忍由调用方决定
type Result struct {
	Status          Status
	Stdout          string
	Stderr          string
	ExitCode        int
	Err             error // 仅 StatusSpawnError / StatusTimeout 时非空
	StdoutTruncated bool
	StderrTruncated bool
	Elapsed         time.Duration
}

// HasOutput stdout 是否包含非空白内容
func (r *Result) HasOutput() bool {
	return strings.TrimSpace(r.Stdout) != ""
}
