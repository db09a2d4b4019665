package pipeline

import (
	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/metrics"
)

// metricsReporter counts completed fetch units.
type metricsReporter struct {
	m *metrics.Manager
}

func (metricsReporter) OnJobStart(backfill.JobSpec, int)    {}
func (metricsReporter) OnUnitStart(backfill.Unit, int, int) {}
func (metricsReporter) OnJobComplete(*backfill.Dataset)     {}
func (metricsReporter) OnJobError(error)                    {}
func (r metricsReporter) OnUnitDone(unit backfill.Unit, records, _, _ int) {
	r.m.RecordUnit(string(unit.Kind), records)
}

// fanout forwards every callback to each non-nil reporter in order.
type fanout []backfill.Reporter

func (f fanout) each(fn func(backfill.Reporter)) {
	for _, r := range f {
		if r != nil {
			fn(r)
		}
	}
}

func (f fanout) OnJobStart(spec backfill.JobSpec, units int) {
	f.each(func(r backfill.Reporter) { r.OnJobStart(spec, units) })
}

func (f fanout) OnUnitStart(unit backfill.Unit, index, total int) {
	f.each(func(r backfill.Reporter) { r.OnUnitStart(unit, index, total) })
}

func (f fanout) OnUnitDone(unit backfill.Unit, records, index, total int) {
	f.each(func(r backfill.Reporter) { r.OnUnitDone(unit, records, index, total) })
}

func (f fanout) OnJobComplete(ds *backfill.Dataset) {
	f.each(func(r backfill.Reporter) { r.OnJobComplete(ds) })
}

func (f fanout) OnJobError(err error) {
	f.each(func(r backfill.Reporter) { r.OnJobError(err) })
}
