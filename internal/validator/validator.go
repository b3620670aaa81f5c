package validator

import "regexp"

// emailPattern 本地部分允许字母数字和 _.+-，域名部分为一个标签加上可含多级的后缀
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// IsValidEmail 判断字符串在语法上是否像一个邮箱地址，不做任何网络或 DNS 校验
func IsValidEmail(s string) bool {
	if s == "" {
		return false
	}
	return emailPattern.MatchString(s)
}
