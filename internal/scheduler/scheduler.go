package scheduler

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/fachebot/holehe-bot/internal/config"
	"github.com/fachebot/holehe-bot/internal/logger"
	"github.com/robfig/cron/v3"
)

// availabilitySink 记录外部工具的可用状态
type availabilitySink interface {
	SetToolAvailable(ok bool)
}

// Scheduler 定期检查 holehe 是否可执行
type Scheduler struct {
	cron     *cron.Cron
	toolPath string
	sink     availabilitySink
	config   *config.Health
	lookPath func(file string) (string, error)
	mu       sync.Mutex
	last     *bool
}

// locUTC UTC 标准时间（UTC）
var locUTC = time.UTC

func NewScheduler(toolPath string, sink availabilitySink, cfg *config.Health) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(locUTC)),
		toolPath: toolPath,
		sink:     sink,
		config:   cfg,
		lookPath: exec.LookPath,
	}
}

// Start 启动调度器，并立即执行一次检查
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.config.Cron, s.checkTool)
	if err != nil {
		return fmt.Errorf("注册健康检查任务失败: %w", err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 调度器已启动，健康检查任务: %s", s.config.Cron)

	s.checkTool()
	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] 调度器已停止")
}

// checkTool 检查 holehe 可执行文件，仅在状态变化时输出日志
func (s *Scheduler) checkTool() {
	resolved, err := s.lookPath(s.toolPath)
	ok := err == nil
	if s.sink != nil {
		s.sink.SetToolAvailable(ok)
	}

	s.mu.Lock()
	changed := s.last == nil || *s.last != ok
	s.last = &ok
	s.mu.Unlock()

	if !changed {
		return
	}
	if ok {
		logger.Infof("[Scheduler] holehe 可用: %s", resolved)
	} else {
		logger.Errorf("[Scheduler] holehe 不可用: %s, %v", s.toolPath, err)
	}
}
