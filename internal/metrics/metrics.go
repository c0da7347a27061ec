// Package metrics records diagnosis workflow counters on a private
// Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements app.Recorder.
type Recorder struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	scores      prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kitbuild",
			Subsystem: "diagnosis",
			Name:      "submissions_total",
			Help:      "Submit attempts by outcome",
		}, []string{"outcome"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kitbuild",
			Subsystem: "diagnosis",
			Name:      "score",
			Help:      "Distribution of diagnosis scores",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
	}
	r.registry.MustRegister(r.submissions, r.scores)
	return r
}

func (r *Recorder) ObserveSubmission(outcome string) {
	r.submissions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveScore(score float64) {
	r.scores.Observe(score)
}

// Registry exposes the collectors for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile dumps the current values in the node_exporter textfile
// format. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
