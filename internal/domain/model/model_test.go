package model_test

import (
	"testing"

	model "github.com/okian/calibrate/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestEmotion(t *testing.T) {
	convey.Convey("Given the emotion categories", t, func() {
		convey.Convey("When reading their percentile ranges", func() {
			convey.Convey("Then they partition [0,1] without gaps or overlaps", func() {
				prev := 0.0
				for _, e := range model.Emotions() {
					r, ok := e.Range()
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(r.Lo, convey.ShouldEqual, prev)
					convey.So(r.Hi, convey.ShouldBeGreaterThan, r.Lo)
					prev = r.Hi
				}
				convey.So(prev, convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When parsing names", func() {
			e, ok := model.ParseEmotion(" LIKED ")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(e, convey.ShouldEqual, model.Liked)
			convey.So(e.String(), convey.ShouldEqual, "liked")

			_, ok = model.ParseEmotion("meh")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When using the zero value", func() {
			var e model.Emotion
			_, ok := e.Range()
			convey.So(e.Valid(), convey.ShouldBeFalse)
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(e.String(), convey.ShouldEqual, "unknown")
		})
	})
}

func TestOutcome(t *testing.T) {
	convey.Convey("Given comparison outcomes", t, func() {
		convey.Convey("Then only the three tagged values are valid", func() {
			convey.So(model.AWins.Valid(), convey.ShouldBeTrue)
			convey.So(model.BWins.Valid(), convey.ShouldBeTrue)
			convey.So(model.Tie.Valid(), convey.ShouldBeTrue)
			convey.So(model.OutcomeUnknown.Valid(), convey.ShouldBeFalse)
			convey.So(model.Outcome(42).Valid(), convey.ShouldBeFalse)
		})

		convey.Convey("Then names round-trip through ParseOutcome", func() {
			for _, o := range []model.Outcome{model.AWins, model.BWins, model.Tie} {
				parsed, ok := model.ParseOutcome(o.String())
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(parsed, convey.ShouldEqual, o)
			}
			_, ok := model.ParseOutcome("A_WINS_TWICE")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}

func TestNormalize(t *testing.T) {
	convey.Convey("Given raw rating values", t, func() {
		convey.So(model.Normalize(0.2), convey.ShouldEqual, 1.0)
		convey.So(model.Normalize(12.7), convey.ShouldEqual, 10.0)
		convey.So(model.Normalize(6.568), convey.ShouldEqual, 6.6)
		convey.So(model.Normalize(7.5273), convey.ShouldEqual, 7.5)
		convey.So(model.Clamp(7.05), convey.ShouldEqual, 7.05)
	})
}

func TestRound1HalfPoints(t *testing.T) {
	convey.Convey("Given values that sit on a half step", t, func() {
		convey.So(model.Round1(7.05), convey.ShouldEqual, 7.1)
		convey.So(model.Round1(6.95), convey.ShouldEqual, 7.0)
		convey.So(model.Round1(5.25), convey.ShouldEqual, 5.3)
		convey.So(model.Round2(7.05), convey.ShouldEqual, 7.05)
	})
}
