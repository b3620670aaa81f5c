package transcript

// SiteHit 一个确认注册过的网站
type SiteHit struct {
	Name string
	URL  string
}

// ExtraInfo 带附加字段（如账号关联的全名、恢复邮箱）的命中行
type ExtraInfo struct {
	Title string
	Link  string
}

// Report 一次 holehe 输出的结构化结果。Sites 与 Extras 都按出现顺序排列，不去重
type Report struct {
	Sites  []SiteHit
	Extras []ExtraInfo

	// WebsitesChecked holehe 末尾统计行中的网站数量，缺失时为 0
	WebsitesChecked int
}

// Empty 没有任何命中
func (r *Report) Empty() bool {
	return r == nil || (len(r.Sites) == 0 && len(r.Extras) == 0)
}
