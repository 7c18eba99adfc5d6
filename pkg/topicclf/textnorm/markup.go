package textnorm

import (
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup extracts the visible text of an HTML fragment: tags become
// spaces, entities are decoded and script/style bodies are dropped.
func StripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	hidden := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was read
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			if isHiddenTag(z) {
				hidden++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if isHiddenTag(z) && hidden > 0 {
				hidden--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isHiddenTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "head", "title":
		return true
	}
	return false
}
