package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openeduvoice/slidevoice/internal/manifest"
)

// DocumentSource returns the current manifest document.
type DocumentSource func() *manifest.Document

// Collector implements prometheus.Collector to read manifest state at
// gather time.
type Collector struct {
	src DocumentSource

	slides    *prometheus.Desc
	artifacts *prometheus.Desc
	combined  *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src DocumentSource) *Collector {
	return &Collector{
		src: src,
		slides: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "slides"),
			"Slides recorded in the manifest.",
			nil, nil,
		),
		artifacts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "artifacts"),
			"Per-slide artifact entries by tag and status.",
			[]string{"tag", "status"}, nil,
		),
		combined: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "combined_package_done"),
			"1 when the combined package has been written.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.slides
	ch <- c.artifacts
	ch <- c.combined
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	doc := c.src()
	if doc == nil {
		doc = &manifest.Document{}
	}
	ch <- prometheus.MustNewConstMetric(c.slides, prometheus.GaugeValue, float64(len(doc.Slides)))

	statuses := []manifest.Status{manifest.StatusPending, manifest.StatusDone, manifest.StatusFailed, manifest.StatusSkipped}
	for _, tag := range manifest.Tags {
		counts := make(map[manifest.Status]int, len(statuses))
		for i := range doc.Slides {
			counts[doc.Slides[i].Entry(tag).Status]++
		}
		for _, st := range statuses {
			ch <- prometheus.MustNewConstMetric(c.artifacts, prometheus.GaugeValue, float64(counts[st]), string(tag), string(st))
		}
	}

	done := 0.0
	if doc.Combined != nil && doc.Combined.Status == manifest.StatusDone {
		done = 1
	}
	ch <- prometheus.MustNewConstMetric(c.combined, prometheus.GaugeValue, done)
}
