// Package pptxtest builds small presentation packages for tests.
package pptxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"
	"testing"
)

// Slide describes one generated slide.
type Slide struct {
	// Part is the slide file name under ppt/slides/. Defaults to slide{n}.xml.
	Part string
	// Paragraphs holds the text runs of each paragraph.
	Paragraphs [][]string
	// Audio, when set, is embedded as the slide's narration.
	Audio    []byte
	AudioExt string // defaults to ".mp3"
}

// Deck is a generated presentation. Slides are listed in document order.
type Deck struct {
	Slides []Slide
	// Extra parts written verbatim, e.g. to mimic masters or notes.
	Extra map[string]string
}

const (
	relsNS     = "http://schemas.openxmlformats.org/package/2006/relationships"
	relOffice  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relSlide   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relLayout  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relAudio   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/audio"
	relMedia   = "http://schemas.microsoft.com/office/2007/relationships/media"
	layoutPart = "ppt/slideLayouts/slideLayout1.xml"
)

// SlidePart returns the package part name of slide i.
func (d Deck) SlidePart(i int) string {
	return "ppt/slides/" + d.partFile(i)
}

func (d Deck) partFile(i int) string {
	if d.Slides[i].Part != "" {
		return d.Slides[i].Part
	}
	return fmt.Sprintf("slide%d.xml", i+1)
}

// MediaPart returns the package part name of slide i's audio.
func (d Deck) MediaPart(i int) string {
	ext := d.Slides[i].AudioExt
	if ext == "" {
		ext = ".mp3"
	}
	return fmt.Sprintf("ppt/media/media%d%s", i+1, ext)
}

// Bytes renders the deck as a .pptx archive.
func (d Deck) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, body string) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(body))
		return err
	}

	if err := write("[Content_Types].xml", d.contentTypes()); err != nil {
		return nil, err
	}
	if err := write("_rels/.rels", rels(rel{"rId1", relOffice, "ppt/presentation.xml"})); err != nil {
		return nil, err
	}
	if err := write("ppt/presentation.xml", d.presentation()); err != nil {
		return nil, err
	}
	var presRels []rel
	for i := range d.Slides {
		presRels = append(presRels, rel{fmt.Sprintf("rId%d", i+2), relSlide, "slides/" + d.partFile(i)})
	}
	if err := write("ppt/_rels/presentation.xml.rels", rels(presRels...)); err != nil {
		return nil, err
	}
	if err := write(layoutPart, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"+
		`<p:sldLayout xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld name="Title"><p:spTree/></p:cSld></p:sldLayout>`); err != nil {
		return nil, err
	}

	for i, s := range d.Slides {
		if err := write(d.SlidePart(i), slideXML(s)); err != nil {
			return nil, err
		}
		slideRels := []rel{{"rId1", relLayout, "../slideLayouts/slideLayout1.xml"}}
		if s.Audio != nil {
			target := "../media/" + strings.TrimPrefix(d.MediaPart(i), "ppt/media/")
			slideRels = append(slideRels, rel{"rId2", relMedia, target}, rel{"rId3", relAudio, target})
			w, err := zw.CreateHeader(&zip.FileHeader{Name: d.MediaPart(i), Method: zip.Store})
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(s.Audio); err != nil {
				return nil, err
			}
		}
		if err := write("ppt/slides/_rels/"+d.partFile(i)+".rels", rels(slideRels...)); err != nil {
			return nil, err
		}
	}
	for name, body := range d.Extra {
		if err := write(name, body); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the deck to file, failing the test on error.
func (d Deck) Write(t testing.TB, file string) {
	t.Helper()
	data, err := d.Bytes()
	if err != nil {
		t.Fatalf("build deck: %v", err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
}

// ReadPart returns one part of the package at file, failing the test if it
// is missing.
func ReadPart(t testing.TB, file, name string) []byte {
	t.Helper()
	parts := ReadAll(t, file)
	data, ok := parts[name]
	if !ok {
		t.Fatalf("part %s not found in %s", name, file)
	}
	return data
}

// ReadAll returns every part of the package at file keyed by name.
func ReadAll(t testing.TB, file string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(file)
	if err != nil {
		t.Fatalf("open %s: %v", file, err)
	}
	defer zr.Close()
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		rc.Close()
		out[f.Name] = buf.Bytes()
	}
	return out
}

type rel struct{ id, typ, target string }

func rels(rs ...rel) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<Relationships xmlns="` + relsNS + `">`)
	for _, r := range rs {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="%s"/>`, r.id, r.typ, r.target)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func (d Deck) contentTypes() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	seen := map[string]bool{}
	for i, s := range d.Slides {
		if s.Audio == nil {
			continue
		}
		ext := strings.TrimPrefix(path.Ext(d.MediaPart(i)), ".")
		if seen[ext] {
			continue
		}
		seen[ext] = true
		ct := "audio/mpeg"
		if ext == "m4a" {
			ct = "audio/mp4"
		}
		fmt.Fprintf(&b, `<Default Extension="%s" ContentType="%s"/>`, ext, ct)
	}
	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	b.WriteString(`<Override PartName="/` + layoutPart + `" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
	for i := range d.Slides {
		fmt.Fprintf(&b, `<Override PartName="/%s" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, d.SlidePart(i))
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func (d Deck) presentation() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<p:presentation xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">`)
	b.WriteString(`<p:sldIdLst>`)
	for i := range d.Slides {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
	}
	b.WriteString(`</p:sldIdLst><p:sldSz cx="12192000" cy="6858000"/></p:presentation>`)
	return b.String()
}

func slideXML(s Slide) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">`)
	b.WriteString(`<p:cSld><p:spTree>`)
	if len(s.Paragraphs) > 0 {
		b.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>`)
		for _, para := range s.Paragraphs {
			b.WriteString(`<a:p>`)
			for _, text := range para {
				b.WriteString(`<a:r><a:rPr lang="de-DE" b="1" dirty="0"/><a:t>`)
				xmlEscape(&b, text)
				b.WriteString(`</a:t></a:r>`)
			}
			b.WriteString(`<a:endParaRPr lang="de-DE"/></a:p>`)
		}
		b.WriteString(`</p:txBody></p:sp>`)
	}
	if s.Audio != nil {
		b.WriteString(`<p:pic><p:nvPicPr><p:cNvPr id="4" name="Audio"><a:hlinkClick r:id="" action="ppaction://media"/></p:cNvPr><p:cNvPicPr/>`)
		b.WriteString(`<p:nvPr><a:audioFile r:link="rId3"/><p:extLst><p:ext uri="{DAA4B4D4-6D71-4841-9C94-3DE7FCFB9230}"><p14:media xmlns:p14="http://schemas.microsoft.com/office/powerpoint/2010/main" r:embed="rId2"/></p:ext></p:extLst></p:nvPr>`)
		b.WriteString(`</p:nvPicPr><p:blipFill/><p:spPr/></p:pic>`)
	}
	b.WriteString(`</p:spTree></p:cSld></p:sld>`)
	return b.String()
}

func xmlEscape(b *strings.Builder, s string) {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	b.WriteString(r.Replace(s))
}
