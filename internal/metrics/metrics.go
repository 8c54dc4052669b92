// Package metrics records per-run pipeline measurements in a private
// Prometheus registry that can be written out in the node-exporter textfile
// format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "segloom"

// Recorder collects the metrics of one pipeline run.
type Recorder struct {
	reg *prometheus.Registry

	stageSeconds *prometheus.GaugeVec
	rows         *prometheus.GaugeVec
	columns      *prometheus.GaugeVec
	clusterShare *prometheus.GaugeVec
	unseen       *prometheus.CounterVec
	components   prometheus.Gauge
	clusters     prometheus.Gauge
	explained    prometheus.Gauge
	lastRun      prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		stageSeconds: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last run of each pipeline stage",
		}, []string{"stage", "dataset"}),
		rows: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Rows per dataset and partition (loaded, kept, set_aside)",
		}, []string{"dataset", "partition"}),
		columns: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "columns",
			Help:      "Columns per dataset after each stage",
		}, []string{"dataset", "stage"}),
		clusterShare: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_share",
			Help:      "Share of rows assigned to each cluster id",
		}, []string{"dataset", "cluster"}),
		unseen: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unseen_levels_total",
			Help:      "Categorical values absent from the reference fit",
		}, []string{"dataset", "column"}),
		components: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pca_components",
			Help:      "Principal components kept by the fitted transform",
		}),
		clusters: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Cluster count of the fitted model",
		}),
		explained: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pca_explained_variance_ratio",
			Help:      "Cumulative explained variance of the kept components",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}),
	}
}

// Stage starts timing a stage; call the returned func when it ends.
func (r *Recorder) Stage(stage, dataset string) func() {
	start := time.Now()
	return func() {
		r.stageSeconds.WithLabelValues(stage, dataset).Set(time.Since(start).Seconds())
	}
}

func (r *Recorder) Rows(dataset, partition string, n int) {
	r.rows.WithLabelValues(dataset, partition).Set(float64(n))
}

func (r *Recorder) Columns(dataset, stage string, n int) {
	r.columns.WithLabelValues(dataset, stage).Set(float64(n))
}

func (r *Recorder) ClusterShare(dataset string, cluster int, share float64) {
	r.clusterShare.WithLabelValues(dataset, strconv.Itoa(cluster)).Set(share)
}

func (r *Recorder) Unseen(dataset string, byColumn map[string]int) {
	for col, n := range byColumn {
		r.unseen.WithLabelValues(dataset, col).Add(float64(n))
	}
}

// Model records the shape of the fitted transform and clustering.
func (r *Recorder) Model(components, clusters int, explained []float64) {
	r.components.Set(float64(components))
	r.clusters.Set(float64(clusters))
	total := 0.0
	for _, v := range explained {
		total += v
	}
	r.explained.Set(total)
}

// Registry exposes the underlying registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile stamps the run time and writes every metric to path.
func (r *Recorder) WriteTextfile(path string) error {
	r.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, r.reg)
}
