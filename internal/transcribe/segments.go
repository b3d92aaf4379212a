package transcribe

import "strings"

// maxSegmentGap splits a segment when the pause between two words is longer
// than this many seconds, even without sentence punctuation.
const maxSegmentGap = 1.5

// SegmentsFromWords groups word timings into sentence-like segments. A
// segment ends at a word carrying terminal punctuation or before a long pause.
func SegmentsFromWords(words []Word) []Segment {
	var (
		segs []Segment
		cur  *Segment
		b    strings.Builder
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(b.String())
		if cur.Text != "" {
			segs = append(segs, *cur)
		}
		cur = nil
		b.Reset()
	}

	for _, w := range words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		if cur != nil && w.Start-cur.End > maxSegmentGap {
			flush()
		}
		if cur == nil {
			cur = &Segment{Start: w.Start}
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(text)
		cur.End = w.End
		if endsSentence(text) {
			flush()
		}
	}
	flush()
	return segs
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]»“”`)
	if word == "" {
		return false
	}
	switch word[len(word)-1] {
	case '.', '!', '?', ';':
		return true
	}
	return strings.HasSuffix(word, "…") || strings.HasSuffix(word, "。")
}
