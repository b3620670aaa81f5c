package transcript

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	hitPrefix      = "[+]"
	legendPrefix   = "[+] Email used"
	progressMarker = "100%|##########|"
	fieldSeparator = " / "
)

var (
	ansiEscape   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	checkedStats = regexp.MustCompile(`^(\d+) websites checked in`)
)

// Parse 将 holehe 的原始 stdout 逐行分类为结构化结果。
// 不要求出现 "****" 横幅；遇到图例行后永久停止收集。输入无法识别时返回空结果，不会报错。
func Parse(raw string) *Report {
	report := &Report{}
	collecting := true

	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(ansiEscape.ReplaceAllString(rawLine, ""))
		if line == "" || strings.Contains(line, progressMarker) {
			continue
		}

		if m := checkedStats.FindStringSubmatch(line); m != nil {
			report.WebsitesChecked, _ = strconv.Atoi(m[1])
			continue
		}

		if !collecting || !strings.HasPrefix(line, hitPrefix) {
			continue
		}
		if strings.HasPrefix(line, legendPrefix) {
			collecting = false
			continue
		}

		classify(report, strings.TrimSpace(line[len(hitPrefix):]))
	}

	return report
}

// classify 含 " / " 的命中行作为附加信息，否则作为普通网站
func classify(report *Report, text string) {
	if text == "" {
		return
	}

	if !strings.Contains(text, fieldSeparator) {
		report.Sites = append(report.Sites, SiteHit{
			Name: siteName(text),
			URL:  "https://" + text,
		})
		return
	}

	fields := strings.Split(text, fieldSeparator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	title := siteName(fields[0])
	if len(fields) > 2 {
		title = fields[1]
	}
	report.Extras = append(report.Extras, ExtraInfo{
		Title: title,
		Link:  fields[len(fields)-1],
	})
}

// siteName twitter.com -> Twitter
func siteName(site string) string {
	label := site
	if i := strings.Index(label, "."); i > 0 {
		label = label[:i]
	}
	// cases.Caser 有内部状态，不能在 goroutine 间共享
	return cases.Title(language.English).String(label)
}
