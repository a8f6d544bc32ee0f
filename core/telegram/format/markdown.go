// Package format renders user supplied text safely into Telegram markup.
package format

import (
	"fmt"
	"regexp"
)

const (
	// MarkdownV1 denotes Telegram legacy Markdown.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram MarkdownV2.
	MarkdownV2 = 2
)

// mdV2Specials omits '-', which is appended last so it cannot form a range.
const mdV2Specials = "_*[]()~`>#+=|{}.!\\"

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile("([" + regexp.QuoteMeta(mdV2Specials) + "-])")
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("format: unsupported markdown version: %d", version)
}

// Markdown escapes text for legacy Markdown, the dialect relay posts use.
func Markdown(text string) string {
	s, _ := EscapeMarkdown(text, MarkdownV1)
	return s
}
