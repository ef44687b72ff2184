package service

import (
	"math"

	"github.com/okian/calibrate/internal/domain/flow"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/rating"
	"github.com/okian/calibrate/pkg/metrics"
)

// metricsObserver reports flow events to Prometheus.
type metricsObserver struct {
	m *metrics.Manager
}

func newMetricsObserver() flow.Observer {
	return metricsObserver{m: metrics.Global()}
}

func (o metricsObserver) FlowStarted() { o.m.FlowStarted() }

func (o metricsObserver) ComparisonResolved(rec model.ComparisonRecord, bd rating.Breakdown) {
	before := rec.OpponentBefore
	if rec.RatingBefore != nil {
		before = *rec.RatingBefore
	}
	o.m.ComparisonResolved(
		rec.Round,
		rec.Outcome.String(),
		math.Abs(rec.RatingAfter-before),
		math.Abs(rec.OpponentAfter-rec.OpponentBefore),
		bd.Upset,
	)
}

func (o metricsObserver) PersistenceWrite(err error) { o.m.PersistenceWrite(err) }

func (o metricsObserver) FlowFinished(state flow.State, final *float64, err error) {
	switch state {
	case flow.StateComplete:
		o.m.FlowFinished(metrics.ResultCompleted, "")
	case flow.StateAborted:
		o.m.FlowFinished(metrics.ResultAborted, "")
	default:
		o.m.FlowFinished(metrics.ResultFailed, flow.Reason(err))
		return
	}
	if final != nil {
		o.m.FinalRating(*final)
	}
}
