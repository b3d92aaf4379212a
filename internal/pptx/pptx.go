// Package pptx reads slide structure out of Office Open XML presentations and
// writes patched copies of them.
//
// Nothing here regenerates package parts. Reads walk the relationship graph
// the way PowerPoint does; writes splice bytes into the original parts and
// copy every untouched zip entry through unchanged.
package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrInvalidPackage is returned when the file is not a readable presentation.
var ErrInvalidPackage = errors.New("invalid presentation package")

const (
	contentTypesPart = "[Content_Types].xml"
	rootRelsPart     = "_rels/.rels"
	defaultMainPart  = "ppt/presentation.xml"
)

// audioExts are the media extensions treated as narration audio.
var audioExts = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".wma": true, ".aac": true,
	".ogg": true, ".oga": true, ".flac": true, ".aif": true, ".aiff": true,
	".mid": true, ".midi": true,
}

// IsAudioExt reports whether ext (with leading dot) is a supported narration format.
func IsAudioExt(ext string) bool {
	return audioExts[strings.ToLower(ext)]
}

// Audio identifies the embedded narration of a slide.
type Audio struct {
	// RelIDs are the slide relationships that point at Part, usually one
	// "audio" and one "media" relationship.
	RelIDs []string `json:"rel_ids"`
	Part   string   `json:"part"`
	Ext    string   `json:"ext"`
}

// Run is one <a:r> text run. ID is "p{paragraph}.r{run}", both ordinals
// counted within the slide part.
type Run struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Slide describes one slide in package-declared order.
type Slide struct {
	Index int    `json:"index"`
	Part  string `json:"part"`
	Audio *Audio `json:"audio,omitempty"`
	Runs  []Run  `json:"runs,omitempty"`

	// Err is set when the slide part or its relationships could not be read.
	// The slide keeps its place in the order either way.
	Err error `json:"-"`
}

// Document is an open presentation package.
type Document struct {
	Path   string
	Slides []Slide

	zr    *zip.ReadCloser
	parts map[string]*zip.File
}

// Open reads the slide order, narration audio references and text runs of
// the package at name. The returned Document must be closed.
func Open(name string) (*Document, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	d := &Document{Path: name, zr: zr, parts: indexParts(&zr.Reader)}

	order, err := slideOrder(d.parts)
	if err != nil {
		zr.Close()
		return nil, err
	}
	d.Slides = make([]Slide, len(order))
	for i, part := range order {
		d.Slides[i] = readSlide(d.parts, i, part)
	}
	return d, nil
}

func (d *Document) Close() error {
	return d.zr.Close()
}

// OpenPart returns a reader for the named part. Safe for concurrent use.
func (d *Document) OpenPart(name string) (io.ReadCloser, error) {
	f, ok := d.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	return f.Open()
}

func indexParts(zr *zip.Reader) map[string]*zip.File {
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[strings.TrimPrefix(f.Name, "/")] = f
	}
	return parts
}

func readPart(parts map[string]*zip.File, name string) ([]byte, error) {
	f, ok := parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// mainPart finds the presentation part through the package root relationships.
func mainPart(parts map[string]*zip.File) string {
	data, err := readPart(parts, rootRelsPart)
	if err != nil {
		return defaultMainPart
	}
	rels, err := parseRels(data)
	if err != nil {
		return defaultMainPart
	}
	for _, r := range rels {
		if strings.HasSuffix(r.Type, "/officeDocument") {
			return resolveTarget("", r.Target)
		}
	}
	return defaultMainPart
}

// slideOrder returns slide part names in the order of p:sldIdLst. Part
// file names carry no ordering meaning.
func slideOrder(parts map[string]*zip.File) ([]string, error) {
	main := mainPart(parts)
	pres, err := readPart(parts, main)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	relsData, err := readPart(parts, relsPartFor(main))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	rels, err := parseRels(relsData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPackage, relsPartFor(main), err)
	}
	byID := make(map[string]relationship, len(rels))
	for _, r := range rels {
		byID[r.ID] = r
	}

	ids, err := slideRelIDs(pres)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPackage, main, err)
	}
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok || !strings.HasSuffix(r.Type, "/slide") {
			return nil, fmt.Errorf("%w: slide relationship %s does not resolve", ErrInvalidPackage, id)
		}
		target := resolveTarget(main, r.Target)
		if _, ok := parts[target]; !ok {
			return nil, fmt.Errorf("%w: slide part %s missing", ErrInvalidPackage, target)
		}
		order = append(order, target)
	}
	return order, nil
}

// slideRelIDs collects the r:id of every p:sldId in document order.
func slideRelIDs(pres []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(pres))
	var ids []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" {
			continue
		}
		for _, a := range se.Attr {
			// The bare "id" attribute is the numeric slide id; the
			// relationship id carries the r: namespace.
			if a.Name.Local == "id" && a.Name.Space != "" {
				ids = append(ids, a.Value)
			}
		}
	}
}

func readSlide(parts map[string]*zip.File, index int, part string) Slide {
	s := Slide{Index: index, Part: part}

	data, err := readPart(parts, part)
	if err != nil {
		s.Err = err
		return s
	}
	spans, err := scanRuns(data)
	if err != nil {
		s.Err = fmt.Errorf("parse %s: %w", part, err)
	}
	for _, sp := range spans {
		if strings.TrimSpace(sp.Text) == "" {
			continue
		}
		s.Runs = append(s.Runs, Run{ID: sp.ID, Text: sp.Text})
	}

	relsData, err := readPart(parts, relsPartFor(part))
	if err != nil {
		// A slide without a rels part has no media at all.
		return s
	}
	rels, err := parseRels(relsData)
	if err != nil {
		if s.Err == nil {
			s.Err = fmt.Errorf("parse %s: %w", relsPartFor(part), err)
		}
		return s
	}
	s.Audio = findAudio(part, rels, parts)
	return s
}

// findAudio returns the first embedded audio target of a slide together with
// every relationship pointing at it.
func findAudio(slidePart string, rels []relationship, parts map[string]*zip.File) *Audio {
	var a *Audio
	for _, r := range rels {
		target, ok := audioTarget(slidePart, r)
		if !ok {
			continue
		}
		if _, exists := parts[target]; !exists {
			continue
		}
		if a == nil {
			a = &Audio{Part: target, Ext: strings.ToLower(path.Ext(target))}
		}
		if target == a.Part {
			a.RelIDs = append(a.RelIDs, r.ID)
		}
	}
	return a
}

// audioTarget resolves r if it is an internal audio or media relationship
// whose target has an audio extension.
func audioTarget(slidePart string, r relationship) (string, bool) {
	if strings.EqualFold(r.TargetMode, "External") {
		return "", false
	}
	if !strings.HasSuffix(r.Type, "/audio") && !strings.HasSuffix(r.Type, "/media") {
		return "", false
	}
	target := resolveTarget(slidePart, r.Target)
	if !IsAudioExt(path.Ext(target)) {
		return "", false
	}
	return target, true
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationshipList struct {
	Rels []relationship `xml:"Relationship"`
}

func parseRels(data []byte) ([]relationship, error) {
	var rl relationshipList
	if err := xml.Unmarshal(data, &rl); err != nil {
		return nil, err
	}
	return rl.Rels, nil
}

// relsPartFor returns the relationships part of a source part:
// "ppt/slides/slide1.xml" → "ppt/slides/_rels/slide1.xml.rels".
func relsPartFor(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// resolveTarget turns a relationship target into a part name relative to the
// package root.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Join(path.Dir(source), target)
}

// relativeTarget is the inverse of resolveTarget for a part in another directory.
func relativeTarget(source, part string) string {
	from := strings.Split(path.Dir(source), "/")
	to := strings.Split(part, "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	var b strings.Builder
	for j := i; j < len(from); j++ {
		if from[j] == "." || from[j] == "" {
			continue
		}
		b.WriteString("../")
	}
	b.WriteString(strings.Join(to[i:], "/"))
	return b.String()
}
