package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// maxErrorBody caps how much of a failed response ends up in an error.
const maxErrorBody = 2 << 10

// upload is a single multipart POST of one slide's audio to an HTTP
// speech-to-text backend. Empty field values are not sent.
type upload struct {
	backend   string
	url       string
	fileField string
	header    http.Header
	fields    []formField
}

type formField struct{ name, value string }

func newUpload(backend, url, fileField string) *upload {
	return &upload{backend: backend, url: url, fileField: fileField, header: http.Header{}}
}

func (u *upload) field(name, value string) *upload {
	if value != "" {
		u.fields = append(u.fields, formField{name, value})
	}
	return u
}

func (u *upload) intField(name string, v int) *upload {
	if v > 0 {
		u.field(name, strconv.Itoa(v))
	}
	return u
}

func (u *upload) floatField(name string, v float64) *upload {
	if v > 0 {
		u.field(name, strconv.FormatFloat(v, 'f', 2, 64))
	}
	return u
}

func (u *upload) body(audioPath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile(u.fileField, filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", filepath.Base(audioPath), err)
	}
	for _, fld := range u.fields {
		if err := mw.WriteField(fld.name, fld.value); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

// post sends the request and decodes a 200 response into out.
func (u *upload) post(ctx context.Context, hc *http.Client, audioPath string, out any) error {
	buf, contentType, err := u.body(audioPath)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", u.backend, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, buf)
	if err != nil {
		return fmt.Errorf("%s: %w", u.backend, err)
	}
	for k, v := range u.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", u.backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: status %d: %s", u.backend, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", u.backend, err)
	}
	return nil
}

// timedText is the {text,start,end} shape shared by the OpenAI-style
// backends for both segments and words.
type timedText struct {
	Text  string  `json:"text"`
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (t timedText) segment() Segment { return Segment{Start: t.Start, End: t.End, Text: t.Text} }

func (t timedText) word() Word {
	w := t.Word
	if w == "" {
		w = t.Text
	}
	return Word{Word: w, Start: t.Start, End: t.End}
}

// verboseJSON is the body returned by OpenAI-compatible servers for
// response_format=verbose_json and by DeepInfra's inference endpoint.
type verboseJSON struct {
	Text     string      `json:"text"`
	Language string      `json:"language"`
	Duration float64     `json:"duration"`
	Segments []timedText `json:"segments"`
	Words    []timedText `json:"words"`
}

func (v *verboseJSON) response() *Response {
	out := &Response{Text: v.Text, Language: v.Language, Duration: v.Duration}
	for _, s := range v.Segments {
		out.Segments = append(out.Segments, s.segment())
	}
	for _, w := range v.Words {
		out.Words = append(out.Words, w.word())
	}
	return Normalize(out)
}
