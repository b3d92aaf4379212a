package translate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitSentences breaks text into chunks of at most maxChars characters,
// cutting at sentence ends (., ! or ? followed by whitespace). Consecutive
// sentences are packed into one chunk while they fit. A sentence longer than
// maxChars is cut at the last space before the limit, or at the limit when
// it has no space.
func SplitSentences(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	var (
		chunks []string
		cur    string
	)
	for _, s := range sentences(text) {
		for utf8.RuneCountInString(s) > maxChars {
			if cur != "" {
				chunks = append(chunks, cur)
				cur = ""
			}
			head, rest := hardSplit(s, maxChars)
			chunks = append(chunks, head)
			s = rest
		}
		if s == "" {
			continue
		}
		switch {
		case cur == "":
			cur = s
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(s) <= maxChars:
			cur += " " + s
		default:
			chunks = append(chunks, cur)
			cur = s
		}
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

func sentences(text string) []string {
	var (
		out   []string
		start int
	)
	rs := []rune(strings.TrimSpace(text))
	for i := 0; i < len(rs); i++ {
		if !strings.ContainsRune(".!?", rs[i]) || i+1 >= len(rs) || !unicode.IsSpace(rs[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(rs[start : i+1])); s != "" {
			out = append(out, s)
		}
		for i+1 < len(rs) && unicode.IsSpace(rs[i+1]) {
			i++
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(rs[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func hardSplit(s string, maxChars int) (string, string) {
	rs := []rune(s)
	cut := maxChars
	for i := maxChars; i > 0; i-- {
		if unicode.IsSpace(rs[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(rs[:cut])), strings.TrimSpace(string(rs[cut:]))
}
