package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	nsDrawingML       = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsDrawingMLStrict = "http://purl.oclc.org/ooxml/drawingml/main"
)

func isDrawingML(n xml.Name, local string) bool {
	return n.Local == local && (n.Space == nsDrawingML || n.Space == nsDrawingMLStrict)
}

// runSpan locates the character data of one run's <a:t> element.
type runSpan struct {
	ID         string
	Text       string
	start, end int64
	selfClose  bool
}

// scanRuns walks a slide part and returns every text run in document order.
// On a parse error the runs seen so far are returned with the error.
func scanRuns(data []byte) ([]runSpan, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		spans     []runSpan
		para, run = -1, -1
		inRun     bool
		cur       *runSpan
		text      strings.Builder
	)
	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			return spans, nil
		}
		if err != nil {
			return spans, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isDrawingML(t.Name, "p"):
				para++
				run = -1
			case isDrawingML(t.Name, "r"):
				run++
				inRun = true
			case inRun && cur == nil && isDrawingML(t.Name, "t"):
				start := dec.InputOffset()
				cur = &runSpan{
					ID:        fmt.Sprintf("p%d.r%d", para, run),
					start:     start,
					selfClose: start >= 2 && string(data[start-2:start]) == "/>",
				}
				text.Reset()
			}
		case xml.CharData:
			if cur != nil {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case cur != nil && isDrawingML(t.Name, "t"):
				cur.end = before
				if cur.selfClose {
					cur.end = cur.start
				}
				cur.Text = text.String()
				spans = append(spans, *cur)
				cur = nil
			case isDrawingML(t.Name, "r"):
				inRun = false
			}
		}
	}
}

// spliceRuns replaces the character data of each run named in texts and
// leaves every other byte of the part as it was. It returns the patched part
// and the sorted IDs from texts that did not match a run.
func spliceRuns(data []byte, texts map[string]string) ([]byte, []string, error) {
	spans, err := scanRuns(data)
	if err != nil {
		return nil, nil, err
	}

	var out bytes.Buffer
	out.Grow(len(data))
	var last int64
	found := make(map[string]bool, len(texts))
	for _, sp := range spans {
		repl, ok := texts[sp.ID]
		if !ok || sp.selfClose {
			continue
		}
		found[sp.ID] = true
		out.Write(data[last:sp.start])
		xml.EscapeText(&out, []byte(repl))
		last = sp.end
	}
	out.Write(data[last:])

	var missing []string
	for id := range texts {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return out.Bytes(), missing, nil
}
