package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/wearsense/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSnapshotJSON(t *testing.T) {
	Convey("Given a snapshot", t, func() {
		Convey("When no sensor reading was usable", func() {
			b, err := json.Marshal(types.Snapshot{
				Predictions: []types.PredictionView{},
				Images:      []types.ImageView{},
				Sensors:     []types.SensorView{},
			})

			Convey("Then comfort_level is omitted", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldNotContainSubstring, "comfort_level")
			})
		})

		Convey("When garments were absent but a reading was usable", func() {
			b, err := json.Marshal(types.Snapshot{ComfortLevel: &[]types.ComfortView{}})

			Convey("Then comfort_level is an empty array", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"comfort_level":[]`)
			})
		})

		Convey("When a pair has only an upper label", func() {
			upper := "short sleeve top"
			b, err := json.Marshal(types.PredictionView{ID: "p", Integrate: "s", PredictedUpper: &upper})

			Convey("Then predicted_lower is null", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"predicted_lower":null`)
				So(string(b), ShouldContainSubstring, `"predicted_upper":"short sleeve top"`)
			})
		})
	})
}

func TestEmptyReportJSON(t *testing.T) {
	Convey("Given an empty report", t, func() {
		b, err := json.Marshal(types.Report{
			ComfortLevelDistribution: []types.DistributionEntry{},
			ComfortLevelDetails:      map[string]types.LevelDetail{},
			LabelCounts:              map[string]int{},
		})

		Convey("Then it encodes null, [], {}, {}", func() {
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"avg_comfort_level":null,"comfort_level_distribution":[],"comfort_level_details":{},"label_counts":{}}`)
		})
	})
}
