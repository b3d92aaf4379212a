package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/openeduvoice/slidevoice/internal/manifest"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder(nil)
	r.Slide("convert", "succeeded", 2*time.Second)
	r.Slide("convert", "succeeded", time.Second)
	r.Slide("convert", "failed", 0)
	r.CapabilityCall("convert", "ffmpeg")
	r.Stage("convert", "partial", 3*time.Second)

	if got := testutil.ToFloat64(r.slidesTotal.WithLabelValues("convert", "succeeded")); got != 2 {
		t.Errorf("succeeded = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.capabilityCalls.WithLabelValues("convert", "ffmpeg")); got != 1 {
		t.Errorf("capability calls = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.stageRunsTotal); got != 1 {
		t.Errorf("stage run series = %d, want 1", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Slide("extract", "succeeded", time.Second)
	r.Stage("extract", "ok", time.Second)
	r.CapabilityCall("extract", "x")
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("WriteTextfile on nil recorder: %v", err)
	}
}

func TestCollector(t *testing.T) {
	doc := &manifest.Document{Slides: []manifest.Slide{{Index: 0}, {Index: 1}}}
	doc.Slides[0].Set(manifest.TagRawAudio, manifest.Entry{Status: manifest.StatusDone})
	doc.Slides[1].Set(manifest.TagRawAudio, manifest.Entry{Status: manifest.StatusSkipped})

	c := NewCollector(func() *manifest.Document { return doc })
	want := `
# HELP slidevoice_slides Slides recorded in the manifest.
# TYPE slidevoice_slides gauge
slidevoice_slides 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "slidevoice_slides"); err != nil {
		t.Error(err)
	}

	// 6 tags x 4 statuses + slides + combined
	if got := testutil.CollectAndCount(c); got != 26 {
		t.Errorf("series = %d, want 26", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	doc := &manifest.Document{Slides: []manifest.Slide{{Index: 0}}}
	r := NewRecorder(func() *manifest.Document { return doc })
	r.Slide("extract", "skipped", 0)

	path := filepath.Join(t.TempDir(), manifest.MetricsFileName)
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`slidevoice_slides_processed_total{outcome="skipped",stage="extract"} 1`,
		`slidevoice_artifacts{status="pending",tag="transcript"} 1`,
		`slidevoice_combined_package_done 0`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
