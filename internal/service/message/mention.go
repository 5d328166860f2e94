package message

import (
	"strings"
	"unicode"
)

// ExtractMentions 按空白切分，取以 @ 开头的词，去掉尾部标点后去重，保持出现顺序
func ExtractMentions(content string) []string {
	var (
		nicks []string
		seen  = make(map[string]struct{})
	)
	for _, tok := range strings.Fields(content) {
		if !strings.HasPrefix(tok, "@") {
			continue
		}
		nick := strings.TrimRightFunc(tok[1:], isTrailingPunct)
		if nick == "" {
			continue
		}
		if _, ok := seen[nick]; ok {
			continue
		}
		seen[nick] = struct{}{}
		nicks = append(nicks, nick)
	}
	return nicks
}

// 昵称里允许出现 _ 和 -
func isTrailingPunct(r rune) bool {
	if r == '_' || r == '-' {
		return false
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
