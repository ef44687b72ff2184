package types_test

import (
	"testing"

	"github.com/okian/calibrate/internal/domain/flow"
	"github.com/okian/calibrate/internal/domain/model"
	types "github.com/okian/calibrate/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSession(t *testing.T) {
	Convey("Given a session snapshot", t, func() {
		Convey("When no round has resolved", func() {
			s := types.Session{State: flow.StateAwaitingOutcome}

			Convey("Then it is not done and has no last comparison", func() {
				So(s.Done(), ShouldBeFalse)
				_, ok := s.LastComparison()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When two rounds have resolved", func() {
			s := types.Session{
				State: flow.StateComplete,
				History: []model.ComparisonRecord{
					{Round: 1, OpponentID: "B", RatingAfter: 8.5},
					{Round: 2, OpponentID: "C", RatingAfter: 8.6},
				},
			}

			Convey("Then the last comparison is round two", func() {
				So(s.Done(), ShouldBeTrue)
				rec, ok := s.LastComparison()
				So(ok, ShouldBeTrue)
				So(rec.OpponentID, ShouldEqual, "C")
			})
		})

		Convey("When the session is aborted or failed", func() {
			So(types.Session{State: flow.StateAborted}.Done(), ShouldBeTrue)
			So(types.Session{State: flow.StateFailed}.Done(), ShouldBeTrue)
			So(types.Session{State: flow.StateReady}.Done(), ShouldBeFalse)
		})
	})
}
