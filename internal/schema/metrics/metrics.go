package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the schema lifecycle module.
type Metrics struct {
	SchemasGenerated prometheus.Counter
	SchemasApproved  prometheus.Counter
	SchemasModified  prometheus.Counter
	LineageConflicts prometheus.Counter
}

// New creates a Metrics instance with all schema lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		SchemasGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docextract_schemas_generated_total",
			Help: "Total number of schema records created from document inference",
		}),
		SchemasApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docextract_schemas_approved_total",
			Help: "Total number of schema records promoted to active",
		}),
		SchemasModified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docextract_schemas_modified_total",
			Help: "Total number of reviewer modifications producing a new version",
		}),
		LineageConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docextract_schema_lineage_conflicts_total",
			Help: "Total number of lineage writes rejected due to concurrent updates",
		}),
	}
}

func (m *Metrics) IncrementGenerated() {
	m.SchemasGenerated.Inc()
}

func (m *Metrics) IncrementApproved() {
	m.SchemasApproved.Inc()
}

func (m *Metrics) IncrementModified() {
	m.SchemasModified.Inc()
}

func (m *Metrics) IncrementConflicts() {
	m.LineageConflicts.Inc()
}
