package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/fachebot/holehe-bot/internal/holehe"
	"github.com/fachebot/holehe-bot/internal/llm"
	"github.com/fachebot/holehe-bot/internal/logger"
	"github.com/fachebot/holehe-bot/internal/metrics"
	"github.com/fachebot/holehe-bot/internal/report"
	"github.com/fachebot/holehe-bot/internal/router"
	"github.com/fachebot/holehe-bot/internal/transcript"
	"github.com/fachebot/holehe-bot/internal/validator"
)

const (
	CommandName = "!email"

	InvalidEmailText = "Invalid email format. Please provide a valid email address."
	TimeoutText      = "The email check timed out. Please try again later."
)

var (
	ErrInvalidInput   = errors.New("邮箱格式无效")
	ErrProcessFailure = errors.New("holehe 执行失败")
	ErrTimeout        = errors.New("holehe 执行超时")
)

// 结果分类，用作指标标签
const (
	OutcomeInvalidInput  = "invalid_input"
	OutcomeTimeout       = "timeout"
	OutcomeSpawnError    = "spawn_error"
	OutcomeProcessFailed = "process_failed"
	OutcomeNoResults     = "no_results"
	OutcomeFound         = "found"
)

// toolRunner 运行 holehe（便于测试注入 mock）
type toolRunner interface {
	Invoke(ctx context.Context, email string) *holehe.Result
}

// assessor 生成暴露面评估（便于测试注入 mock）
type assessor interface {
	AssessExposure(ctx context.Context, e *llm.Exposure) (string, error)
}

type Lookup struct {
	runner  toolRunner
	analyst assessor
	metrics *metrics.Metrics
}

// New 创建 !email 处理器。analyst 与 m 均可为 nil
func New(runner *holehe.Invoker, analyst *llm.Client, m *metrics.Metrics) *Lookup {
	l := &Lookup{runner: runner, metrics: m}
	if analyst != nil {
		l.analyst = analyst
	}
	return l
}

// Command 返回用于注册到路由器的命令
func (l *Lookup) Command() router.Command {
	return router.Command{
		Name:        CommandName,
		Usage:       CommandName + " <address>",
		Description: "Check which sites an email address is registered at",
		Handler:     l,
	}
}

// Handle 将预期内的失败转换为用户可见的回复；只有意外错误才返回 error
func (l *Lookup) Handle(ctx context.Context, req *router.Request) (*router.Message, error) {
	email := req.Argument
	rendered, err := l.Check(ctx, email)
	switch {
	case err == nil:
		return &router.Message{Plain: rendered.Plain, HTML: rendered.HTML}, nil
	case errors.Is(err, ErrInvalidInput):
		return &router.Message{Plain: InvalidEmailText}, nil
	case errors.Is(err, ErrTimeout):
		logger.Warnf("[Lookup] %s: %v", email, err)
		return &router.Message{Plain: TimeoutText}, nil
	case errors.Is(err, ErrProcessFailure):
		logger.Errorf("[Lookup] %s: %v", email, err)
		return &router.Message{Plain: router.ApologyText}, nil
	default:
		return nil, err
	}
}

// Check 校验邮箱、运行 holehe 并渲染结果
func (l *Lookup) Check(ctx context.Context, email string) (report.Rendered, error) {
	if !validator.IsValidEmail(email) {
		l.observeRejected()
		return report.Rendered{}, fmt.Errorf("%w: %q", ErrInvalidInput, email)
	}

	logger.Infof("[Lookup] 开始检查邮箱: %s", email)
	done := l.lookupStarted()
	outcome := OutcomeProcessFailed
	defer func() { done(outcome) }()

	result := l.runner.Invoke(ctx, email)
	l.observeRun(result)
	if result.Stderr != "" {
		logger.Warnf("[Lookup] holehe stderr (%s): %s", email, result.Stderr)
	}

	switch result.Status {
	case holehe.StatusTimeout:
		outcome = OutcomeTimeout
		return report.Rendered{}, fmt.Errorf("%w: %v", ErrTimeout, result.Err)
	case holehe.StatusSpawnError:
		outcome = OutcomeSpawnError
		return report.Rendered{}, fmt.Errorf("%w: %v", ErrProcessFailure, result.Err)
	case holehe.StatusProcessFailed:
		if !result.HasOutput() {
			return report.Rendered{}, fmt.Errorf("%w: 退出码 %d 且没有输出", ErrProcessFailure, result.ExitCode)
		}
		logger.Warnf("[Lookup] holehe 退出码 %d，继续解析已有输出", result.ExitCode)
	case holehe.StatusSuccess:
		if !result.HasOutput() {
			return report.Rendered{}, fmt.Errorf("%w: 没有输出", ErrProcessFailure)
		}
	}

	parsed := transcript.Parse(result.Stdout)
	l.observeHits(parsed)
	if parsed.Empty() {
		outcome = OutcomeNoResults
		logger.Infof("[Lookup] %s 没有命中, 共检查 %d 个网站", email, parsed.WebsitesChecked)
	} else {
		outcome = OutcomeFound
		logger.Infof("[Lookup] %s 命中 %d 个网站, %d 条附加信息, 共检查 %d 个网站",
			email, len(parsed.Sites), len(parsed.Extras), parsed.WebsitesChecked)
	}

	rendered := report.Format(parsed, email)
	if l.analyst != nil && !parsed.Empty() {
		rendered = l.appendAssessment(ctx, rendered, email, parsed)
	}
	return rendered, nil
}

// appendAssessment 评估失败只记录日志，不影响结果
func (l *Lookup) appendAssessment(ctx context.Context, rendered report.Rendered, email string, parsed *transcript.Report) report.Rendered {
	exposure := &llm.Exposure{Email: email}
	for _, site := range parsed.Sites {
		exposure.Sites = append(exposure.Sites, site.Name)
	}
	for _, extra := range parsed.Extras {
		exposure.Extras = append(exposure.Extras, extra.Title+": "+extra.Link)
	}

	assessment, err := l.analyst.AssessExposure(ctx, exposure)
	if err != nil {
		logger.Warnf("[Lookup] 生成暴露面评估失败: %v", err)
		return rendered
	}
	return report.AppendSection(rendered, "Assessment", assessment)
}

func (l *Lookup) lookupStarted() func(outcome string) {
	if l.metrics == nil {
		return func(string) {}
	}
	return l.metrics.LookupStarted()
}

func (l *Lookup) observeRejected() {
	if l.metrics != nil {
		l.metrics.LookupStarted()(OutcomeInvalidInput)
	}
}

func (l *Lookup) observeRun(result *holehe.Result) {
	if l.metrics != nil && result.Status != holehe.StatusSpawnError {
		l.metrics.ObserveRun(result.Elapsed)
	}
}

func (l *Lookup) observeHits(parsed *transcript.Report) {
	if l.metrics != nil {
		l.metrics.ObserveHits(len(parsed.Sites), len(parsed.Extras))
	}
}
