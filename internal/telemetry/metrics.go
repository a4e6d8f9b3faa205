package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds the Prometheus self-metrics of the telemetry pipeline
// itself. Business metrics go through the registry's dotted-name instruments;
// these underscored names exist so operators can see the pipeline drop or
// redact records. Names follow the Prometheus charset, which is why they do
// not share the dotted convention.
type PipelineMetrics struct {
	SpansEnded        prometheus.Counter
	SpansExported     prometheus.Counter
	SpansDropped      prometheus.Counter
	SanitizerFailures prometheus.Counter
	ExportFailures    prometheus.Counter
}

// NewPipelineMetrics registers the pipeline metrics against the given
// registerer so tests can use isolated registries.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)
	return &PipelineMetrics{
		SpansEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "eshop_telemetry_spans_ended_total",
			Help: "Total number of spans that reached the Ended state.",
		}),
		SpansExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "eshop_telemetry_spans_exported_total",
			Help: "Total number of sanitized spans handed to the exporter.",
		}),
		SpansDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "eshop_telemetry_spans_dropped_total",
			Help: "Total number of spans dropped because the export buffer was full.",
		}),
		SanitizerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "eshop_telemetry_sanitizer_failures_total",
			Help: "Total number of spans replaced wholesale by a redacted record.",
		}),
		ExportFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "eshop_telemetry_export_failures_total",
			Help: "Total number of failed export batches.",
		}),
	}
}
