package markdown

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strconv"
)

// mathPattern matches TeX spans in the forms MathJax typesets. Code and
// escaped dollars come first so they are matched, and kept, before any math
// alternative can claim them.
var mathPattern = regexp.MustCompile("(?s)```.*?```|`[^`\\n]+`|\\\\\\$" +
	`|\$\$.+?\$\$` +
	`|\\\[.+?\\\]` +
	`|\\\(.+?\\\)` +
	`|\$[^\s$](?:[^$\n]*[^\s$\\])?\$`)

const mathPlaceholder = "SPECTRAMATH%dEND"

var placeholderPattern = regexp.MustCompile(`SPECTRAMATH(\d+)END`)

// protectMath swaps TeX spans for inert placeholders so Markdown emphasis and
// backslash escapes leave them alone.
func protectMath(src []byte) ([]byte, []string) {
	var spans []string
	out := mathPattern.ReplaceAllFunc(src, func(m []byte) []byte {
		if m[0] == '`' || bytes.Equal(m, []byte(`\$`)) {
			return m
		}
		spans = append(spans, string(m))
		return []byte(fmt.Sprintf(mathPlaceholder, len(spans)-1))
	})
	return out, spans
}

func restoreMath(rendered []byte, spans []string) []byte {
	if len(spans) == 0 {
		return rendered
	}
	return placeholderPattern.ReplaceAllFunc(rendered, func(m []byte) []byte {
		if s, ok := lookupSpan(m, spans); ok {
			return []byte(html.EscapeString(s))
		}
		return m
	})
}

func restoreText(s string, spans []string) string {
	if len(spans) == 0 {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		if span, ok := lookupSpan([]byte(m), spans); ok {
			return span
		}
		return m
	})
}

func lookupSpan(m []byte, spans []string) (string, bool) {
	sub := placeholderPattern.FindSubmatch(m)
	if sub == nil {
		return "", false
	}
	i, err := strconv.Atoi(string(sub[1]))
	if err != nil || i >= len(spans) {
		return "", false
	}
	return spans[i], true
}
