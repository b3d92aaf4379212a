package pptx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Patch lists the replacements for one slide.
type Patch struct {
	Slide int               // index in document order
	Texts map[string]string // run ID → replacement text
	Audio *AudioPatch
}

// AudioPatch replaces the narration of a slide.
type AudioPatch struct {
	File   string   // local path of the new audio file
	RelIDs []string // relationship IDs recorded at extraction
}

// Result summarizes what Reintegrate changed.
type Result struct {
	TextRuns    int
	AudioSlides int
	// Fallbacks are slides whose recorded relationship IDs no longer named
	// an audio target, matched to their first audio relationship instead.
	Fallbacks    []int
	MissingRuns  map[int][]string
	MissingAudio []int
	DroppedParts []string
}

// partEpoch is the timestamp on parts added by Reintegrate, fixed so that
// the same inputs always produce the same package bytes.
var partEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

type addedPart struct {
	name string
	file string
}

// Reintegrate writes a copy of the package at src to dst with patches
// applied. Entries that no patch touches are copied without recompression.
// New audio parts are named "ppt/media/{stem}_slideNN.<ext>".
func Reintegrate(ctx context.Context, src string, dst io.Writer, stem string, patches []Patch) (*Result, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	defer zr.Close()

	parts := indexParts(&zr.Reader)
	order, err := slideOrder(parts)
	if err != nil {
		return nil, err
	}

	res := &Result{MissingRuns: make(map[int][]string)}
	replaced := make(map[string][]byte)
	taken := make(map[string]bool)
	oldMedia := make(map[string]bool)
	exts := make(map[string]bool)
	var added []addedPart

	for _, p := range patches {
		if p.Slide < 0 || p.Slide >= len(order) {
			return nil, fmt.Errorf("slide %d out of range (package has %d)", p.Slide, len(order))
		}
		part := order[p.Slide]

		if len(p.Texts) > 0 {
			data, err := readPart(parts, part)
			if err != nil {
				return nil, fmt.Errorf("slide %d: %w", p.Slide, err)
			}
			patched, missing, err := spliceRuns(data, p.Texts)
			if err != nil {
				return nil, fmt.Errorf("slide %d: parse %s: %w", p.Slide, part, err)
			}
			replaced[part] = patched
			res.TextRuns += len(p.Texts) - len(missing)
			if len(missing) > 0 {
				res.MissingRuns[p.Slide] = missing
			}
		}

		if p.Audio == nil {
			continue
		}
		relsName := relsPartFor(part)
		data, err := readPart(parts, relsName)
		if err != nil {
			res.MissingAudio = append(res.MissingAudio, p.Slide)
			continue
		}
		rels, err := parseRels(data)
		if err != nil {
			return nil, fmt.Errorf("slide %d: parse %s: %w", p.Slide, relsName, err)
		}
		ids, old, fallback := matchAudioRels(part, rels, p.Audio.RelIDs)
		if len(ids) == 0 {
			res.MissingAudio = append(res.MissingAudio, p.Slide)
			continue
		}

		ext := strings.ToLower(path.Ext(p.Audio.File))
		name := uniquePartName(parts, taken, fmt.Sprintf("ppt/media/%s_slide%02d", stem, p.Slide+1), ext)
		patched, err := retargetRels(data, ids, relativeTarget(part, name))
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", p.Slide, err)
		}
		replaced[relsName] = patched
		added = append(added, addedPart{name: name, file: p.Audio.File})
		exts[ext] = true
		for _, o := range old {
			oldMedia[o] = true
		}
		res.AudioSlides++
		if fallback {
			res.Fallbacks = append(res.Fallbacks, p.Slide)
		}
	}

	dropped, err := unreferenced(parts, replaced, oldMedia)
	if err != nil {
		return nil, err
	}
	for name := range dropped {
		res.DroppedParts = append(res.DroppedParts, name)
	}
	sort.Strings(res.DroppedParts)

	if len(exts) > 0 || len(dropped) > 0 {
		ct, err := readPart(parts, contentTypesPart)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
		}
		patched, err := patchContentTypes(ct, exts, dropped)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", contentTypesPart, err)
		}
		if !bytes.Equal(patched, ct) {
			replaced[contentTypesPart] = patched
		}
	}

	zw := zip.NewWriter(dst)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := strings.TrimPrefix(f.Name, "/")
		if dropped[name] {
			continue
		}
		data, ok := replaced[name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	for _, a := range added {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := addFile(zw, a); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish package: %w", err)
	}
	return res, nil
}

func addFile(zw *zip.Writer, a addedPart) error {
	f, err := os.Open(a.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.file, err)
	}
	defer f.Close()
	// Audio is already compressed or not worth deflating; PowerPoint stores media.
	w, err := zw.CreateHeader(&zip.FileHeader{Name: a.name, Method: zip.Store, Modified: partEpoch})
	if err != nil {
		return fmt.Errorf("write %s: %w", a.name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write %s: %w", a.name, err)
	}
	return nil
}

// matchAudioRels picks the relationships to repoint. Recorded IDs win when
// they still name audio; otherwise every relationship sharing the slide's
// first audio target is used.
func matchAudioRels(slidePart string, rels []relationship, recorded []string) (ids, oldTargets []string, fallback bool) {
	byID := make(map[string]relationship, len(rels))
	for _, r := range rels {
		byID[r.ID] = r
	}
	seen := make(map[string]bool)
	for _, id := range recorded {
		r, ok := byID[id]
		if !ok {
			continue
		}
		target, ok := audioTarget(slidePart, r)
		if !ok {
			continue
		}
		ids = append(ids, id)
		if !seen[target] {
			seen[target] = true
			oldTargets = append(oldTargets, target)
		}
	}
	if len(ids) > 0 {
		return ids, oldTargets, false
	}

	var first string
	for _, r := range rels {
		target, ok := audioTarget(slidePart, r)
		if !ok {
			continue
		}
		if first == "" {
			first = target
		}
		if target == first {
			ids = append(ids, r.ID)
		}
	}
	if first == "" {
		return nil, nil, false
	}
	return ids, []string{first}, true
}

func uniquePartName(parts map[string]*zip.File, taken map[string]bool, base, ext string) string {
	name := base + ext
	for i := 2; parts[name] != nil || taken[name]; i++ {
		name = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	taken[name] = true
	return name
}

var targetAttr = regexp.MustCompile(`(\sTarget\s*=\s*)("[^"]*"|'[^']*')`)

// retargetRels rewrites the Target attribute of the relationships in ids.
func retargetRels(data []byte, ids []string, target string) ([]byte, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(target))
	repl := []byte(`${1}"` + strings.ReplaceAll(escaped.String(), "$", "$$") + `"`)

	dec := xml.NewDecoder(bytes.NewReader(data))
	var out bytes.Buffer
	var last int64
	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" || !want[attr(se, "Id")] {
			continue
		}
		after := dec.InputOffset()
		raw := data[before:after]
		loc := targetAttr.FindSubmatchIndex(raw)
		if loc == nil {
			return nil, fmt.Errorf("relationship %s has no Target", attr(se, "Id"))
		}
		out.Write(data[last:before])
		out.Write(raw[:loc[0]])
		out.Write(targetAttr.Expand(nil, repl, raw, loc))
		out.Write(raw[loc[1]:])
		last = after
	}
	out.Write(data[last:])
	return out.Bytes(), nil
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// unreferenced returns the candidates no relationship in the package still
// targets, taking pending rels rewrites into account.
func unreferenced(parts map[string]*zip.File, replaced map[string][]byte, candidates map[string]bool) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(candidates) == 0 {
		return out, nil
	}
	for c := range candidates {
		out[c] = true
	}
	for name := range parts {
		if !strings.HasSuffix(name, ".rels") {
			continue
		}
		data, ok := replaced[name]
		if !ok {
			var err error
			if data, err = readPart(parts, name); err != nil {
				return nil, err
			}
		}
		rels, err := parseRels(data)
		if err != nil {
			// Unparseable rels may still reference the media; keep it.
			return map[string]bool{}, nil
		}
		source := sourceOfRels(name)
		for _, r := range rels {
			if strings.EqualFold(r.TargetMode, "External") {
				continue
			}
			delete(out, resolveTarget(source, r.Target))
		}
	}
	return out, nil
}

// sourceOfRels inverts relsPartFor: "ppt/slides/_rels/slide1.xml.rels" →
// "ppt/slides/slide1.xml", "_rels/.rels" → "".
func sourceOfRels(relsPart string) string {
	dir, file := path.Split(relsPart)
	dir = strings.TrimSuffix(strings.TrimSuffix(dir, "/"), "_rels")
	return dir + strings.TrimSuffix(file, ".rels")
}

// mediaContentTypes are the content types PowerPoint writes for audio.
var mediaContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".wma":  "audio/x-ms-wma",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".aif":  "audio/x-aiff",
	".aiff": "audio/x-aiff",
	".mid":  "audio/midi",
	".midi": "audio/midi",
}

// patchContentTypes adds a Default entry for each new extension and removes
// Override entries of dropped parts.
func patchContentTypes(data []byte, exts, dropped map[string]bool) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	have := make(map[string]bool)
	type span struct{ start, end int64 }
	var (
		cuts     []span
		closeAt  int64 = -1
		overFrom int64 = -1
	)
	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Default":
				have["."+strings.ToLower(attr(t, "Extension"))] = true
			case "Override":
				if dropped[strings.TrimPrefix(attr(t, "PartName"), "/")] {
					overFrom = before
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "Override":
				if overFrom >= 0 {
					cuts = append(cuts, span{overFrom, dec.InputOffset()})
					overFrom = -1
				}
			case "Types":
				closeAt = before
			}
		}
	}
	if closeAt < 0 {
		return nil, fmt.Errorf("missing </Types>")
	}

	var missing []string
	for ext := range exts {
		if !have[ext] {
			missing = append(missing, ext)
		}
	}
	sort.Strings(missing)

	var out bytes.Buffer
	var last int64
	for _, c := range cuts {
		out.Write(data[last:c.start])
		last = c.end
	}
	out.Write(data[last:closeAt])
	for _, ext := range missing {
		ct, ok := mediaContentTypes[ext]
		if !ok {
			ct = "application/octet-stream"
		}
		fmt.Fprintf(&out, `<Default Extension="%s" ContentType="%s"/>`, strings.TrimPrefix(ext, "."), ct)
	}
	out.Write(data[closeAt:])
	return out.Bytes(), nil
}
