// Package metrics exposes Prometheus metrics for the catalog pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Provider struct {
	reg *prometheus.Registry

	FoldersProcessed prometheus.Counter
	FoldersSkipped   prometheus.Counter
	FoldersFailed    prometheus.Counter
	ItemsMerged      prometheus.Gauge
	AssetsFlattened  prometheus.Counter
	LinksDeduped     prometheus.Counter
	DayConflicts     prometheus.Counter
	SyncDuration     prometheus.Histogram
}

func Init(version string) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "icestac_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version"},
	)
	reg.MustRegister(build)
	if version == "" {
		version = "dev"
	}
	build.WithLabelValues(version).Set(1)

	p := &Provider{
		reg: reg,
		FoldersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icestac_sync_folders_processed_total",
			Help: "Source folders fetched, repackaged and catalogued.",
		}),
		FoldersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icestac_sync_folders_skipped_total",
			Help: "Source folders skipped because they were already catalogued.",
		}),
		FoldersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icestac_sync_folders_failed_total",
			Help: "Source folders that failed to download or convert.",
		}),
		ItemsMerged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "icestac_grouped_items",
			Help: "Items in the grouped catalog after the last merge pass.",
		}),
		AssetsFlattened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icestac_merge_assets_flattened_total",
			Help: "Assets re-keyed by merge passes.",
		}),
		LinksDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icestac_merge_links_deduped_total",
			Help: "Duplicate (rel, href) links dropped by merge passes.",
		}),
		DayConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icestac_merge_datetime_conflicts_total",
			Help: "Merge partitions whose members disagreed on the calendar day.",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "icestac_sync_duration_seconds",
			Help:    "Wall time of full sync runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	reg.MustRegister(
		p.FoldersProcessed, p.FoldersSkipped, p.FoldersFailed,
		p.ItemsMerged, p.AssetsFlattened, p.LinksDeduped, p.DayConflicts,
		p.SyncDuration,
	)
	return p
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
