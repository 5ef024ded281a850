package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/wearsense/internal/adapters/repository"
	"github.com/okian/wearsense/internal/domain/analytics"
	"github.com/okian/wearsense/internal/domain/model"
	"github.com/okian/wearsense/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var day = time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *repository.MemoryStore
	session model.Session
}

// seed reproduces four comforts, two sensors and two predictions in one session.
func seed(withSensors, withPredictions bool) fixture {
	ctx := context.Background()
	s := repository.NewMemoryStore()
	sess, _, _ := s.UpsertSession(ctx, "test_secret")

	for i, lvl := range []string{"1", "2", "3", "4"} {
		_ = s.AddComfort(ctx, &model.Comfort{SessionID: sess.ID, Level: lvl, Timestamp: day.Add(time.Duration(i) * time.Hour)})
	}
	if withSensors {
		_ = s.AddSensor(ctx, &model.Sensor{SessionID: sess.ID, Temperature: model.Ptr(25.5), Humidity: model.Ptr(60.0)})
		_ = s.AddSensor(ctx, &model.Sensor{SessionID: sess.ID, Temperature: model.Ptr(26.0), Humidity: model.Ptr(65.0)})
	}
	if withPredictions {
		_ = s.AddPrediction(ctx, &model.Prediction{SessionID: sess.ID, Upper: model.Ptr("T-shirt"), Lower: model.Ptr("Shorts"), Timestamp: day})
		_ = s.AddPrediction(ctx, &model.Prediction{SessionID: sess.ID, Upper: model.Ptr("Jacket"), Lower: model.Ptr("Jeans"), Timestamp: day.Add(time.Hour)})
	}
	return fixture{store: s, session: sess}
}

func detail(temp, humid float64, upper, lower string) types.LevelDetail {
	return types.LevelDetail{
		Count:       1,
		AvgTemp:     temp,
		AvgHumid:    humid,
		UpperLabels: map[string]int{upper: 1},
		LowerLabels: map[string]int{lower: 1},
	}
}

func TestReport(t *testing.T) {
	Convey("Given the reference fixture", t, func() {
		ctx := context.Background()

		Convey("When building the combined report", func() {
			f := seed(true, true)
			report, err := analytics.NewEngine(f.store).Report(ctx)

			Convey("Then every section matches", func() {
				So(err, ShouldBeNil)
				So(*report.AvgComfortLevel, ShouldEqual, 2.5)
				So(report.ComfortLevelDistribution, ShouldResemble, []types.DistributionEntry{
					{Comfort: "1", Count: 1}, {Comfort: "2", Count: 1}, {Comfort: "3", Count: 1}, {Comfort: "4", Count: 1},
				})
				So(report.ComfortLevelDetails, ShouldResemble, map[string]types.LevelDetail{
					"1": detail(25.75, 62.5, "T-shirt", "Shorts"),
					"2": detail(25.75, 62.5, "Jacket", "Jeans"),
					"3": detail(25.75, 62.5, "none", "none"),
					"4": detail(25.75, 62.5, "none", "none"),
				})
				So(report.LabelCounts, ShouldResemble, map[string]int{"T-shirt": 1, "Shorts": 1, "Jacket": 1, "Jeans": 1})
			})
		})

		Convey("When there are no predictions", func() {
			f := seed(true, false)
			report, err := analytics.NewEngine(f.store).Report(ctx)

			Convey("Then histograms collapse to none and label counts are empty", func() {
				So(err, ShouldBeNil)
				for _, lvl := range []string{"1", "2", "3", "4"} {
					So(report.ComfortLevelDetails[lvl], ShouldResemble, detail(25.75, 62.5, "none", "none"))
				}
				So(report.LabelCounts, ShouldResemble, map[string]int{})
			})
		})

		Convey("When there are no sensors", func() {
			f := seed(false, true)
			report, err := analytics.NewEngine(f.store).Report(ctx)

			Convey("Then temperature and humidity are zero and the rest is unchanged", func() {
				So(err, ShouldBeNil)
				So(*report.AvgComfortLevel, ShouldEqual, 2.5)
				So(report.ComfortLevelDetails["1"], ShouldResemble, detail(0, 0, "T-shirt", "Shorts"))
				So(report.ComfortLevelDetails["4"], ShouldResemble, detail(0, 0, "none", "none"))
			})
		})

		Convey("When there are no comforts at all", func() {
			e := analytics.NewEngine(repository.NewMemoryStore())
			report, err := e.Report(ctx)

			Convey("Then the report is null, [], {}, {}", func() {
				So(err, ShouldBeNil)
				So(report.AvgComfortLevel, ShouldBeNil)
				So(report.ComfortLevelDistribution, ShouldResemble, []types.DistributionEntry{})
				So(report.ComfortLevelDetails, ShouldResemble, map[string]types.LevelDetail{})
				So(report.LabelCounts, ShouldResemble, map[string]int{})
			})

			Convey("And every single operation is empty too", func() {
				avg, err := e.AverageComfortLevel(ctx, "")
				So(err, ShouldBeNil)
				So(avg, ShouldBeNil)
				dist, _ := e.Distribution(ctx, "")
				So(dist, ShouldResemble, []types.DistributionEntry{})
				det, _ := e.Details(ctx, "")
				So(det, ShouldResemble, map[string]types.LevelDetail{})
				lc, _ := e.LabelCounts(ctx)
				So(lc, ShouldResemble, map[string]int{})
				corr, _ := e.Correlation(ctx, "")
				So(corr, ShouldResemble, []types.CorrelationPoint{})
			})
		})
	})
}

func TestFilteredOperations(t *testing.T) {
	Convey("Given the reference fixture", t, func() {
		ctx := context.Background()
		e := analytics.NewEngine(seed(true, true).store)

		Convey("When filtering the distribution by 2", func() {
			dist, err := e.Distribution(ctx, "2")

			Convey("Then only that level is counted", func() {
				So(err, ShouldBeNil)
				So(dist, ShouldResemble, []types.DistributionEntry{{Comfort: "2", Count: 1}})
			})
		})

		Convey("When filtering details by 1", func() {
			det, err := e.Details(ctx, "1")

			Convey("Then a single bucket is returned", func() {
				So(err, ShouldBeNil)
				So(det, ShouldResemble, map[string]types.LevelDetail{"1": detail(25.75, 62.5, "T-shirt", "Shorts")})
			})
		})

		Convey("When filtering the average by an absent level", func() {
			avg, err := e.AverageComfortLevel(ctx, "9")

			Convey("Then it is nil", func() {
				So(err, ShouldBeNil)
				So(avg, ShouldBeNil)
			})
		})

		Convey("When counting single labels", func() {
			known, err1 := e.LabelCount(ctx, "T-shirt")
			unknown, err2 := e.LabelCount(ctx, "Poncho")

			Convey("Then known labels count and unknown ones are zero", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(known, ShouldEqual, 1)
				So(unknown, ShouldEqual, 0)
			})
		})
	})
}

func TestAverageSkipsNonNumeric(t *testing.T) {
	Convey("Given comfort labels mixing numbers and words", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		sess, _, _ := s.UpsertSession(ctx, "x")
		for _, lvl := range []string{"2", "warm", "4"} {
			_ = s.AddComfort(ctx, &model.Comfort{SessionID: sess.ID, Level: lvl})
		}
		e := analytics.NewEngine(s)

		Convey("Then only the numeric ones are averaged", func() {
			avg, err := e.AverageComfortLevel(ctx, "")
			So(err, ShouldBeNil)
			So(*avg, ShouldEqual, 3.0)
		})

		Convey("And a filter matching only words yields nil", func() {
			avg, err := e.AverageComfortLevel(ctx, "warm")
			So(err, ShouldBeNil)
			So(avg, ShouldBeNil)
		})
	})
}

func TestDetailsAcrossSessions(t *testing.T) {
	Convey("Given two sessions sharing a comfort level", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		a, _, _ := s.UpsertSession(ctx, "a")
		b, _, _ := s.UpsertSession(ctx, "b")

		_ = s.AddSensor(ctx, &model.Sensor{SessionID: a.ID, Temperature: model.Ptr(20.0), Humidity: model.Ptr(0.0)})
		_ = s.AddSensor(ctx, &model.Sensor{SessionID: a.ID, Temperature: nil, Humidity: model.Ptr(40.0)})
		_ = s.AddSensor(ctx, &model.Sensor{SessionID: b.ID, Temperature: model.Ptr(30.0), Humidity: model.Ptr(50.0)})
		_ = s.AddPrediction(ctx, &model.Prediction{SessionID: a.ID, Upper: model.Ptr("vest")})
		_ = s.AddPrediction(ctx, &model.Prediction{SessionID: b.ID, Lower: model.Ptr("skirt")})

		_ = s.AddComfort(ctx, &model.Comfort{SessionID: a.ID, Level: "3"})
		_ = s.AddComfort(ctx, &model.Comfort{SessionID: b.ID, Level: "3"})
		_ = s.AddComfort(ctx, &model.Comfort{SessionID: a.ID, Level: "3"})

		det, err := analytics.NewEngine(s).Details(ctx, "")

		Convey("Then session means are summed per comfort and zeros are skipped", func() {
			So(err, ShouldBeNil)
			d := det["3"]
			So(d.Count, ShouldEqual, 3)
			So(d.AvgTemp, ShouldEqual, 20.0+30.0+20.0)
			So(d.AvgHumid, ShouldEqual, 40.0+50.0+40.0)
			So(d.UpperLabels, ShouldResemble, map[string]int{"vest": 1, "none": 2})
			So(d.LowerLabels, ShouldResemble, map[string]int{"none": 2, "skirt": 1})
		})
	})
}

func TestCorrelation(t *testing.T) {
	Convey("Given comforts in sessions with and without sensors", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		withSensor, _, _ := s.UpsertSession(ctx, "with")
		without, _, _ := s.UpsertSession(ctx, "without")

		_ = s.AddSensor(ctx, &model.Sensor{SessionID: withSensor.ID, Temperature: model.Ptr(18.0), Humidity: model.Ptr(30.0), Timestamp: day})
		_ = s.AddSensor(ctx, &model.Sensor{SessionID: withSensor.ID, Temperature: model.Ptr(22.0), Humidity: model.Ptr(45.0), Timestamp: day.Add(time.Hour)})
		_ = s.AddComfort(ctx, &model.Comfort{SessionID: withSensor.ID, Level: "2"})
		_ = s.AddComfort(ctx, &model.Comfort{SessionID: without.ID, Level: "4"})
		_ = s.AddComfort(ctx, &model.Comfort{SessionID: withSensor.ID, Level: "3"})

		e := analytics.NewEngine(s)

		Convey("Then each comfort of a sensed session pairs with the latest reading", func() {
			points, err := e.Correlation(ctx, "")
			So(err, ShouldBeNil)
			So(points, ShouldResemble, []types.CorrelationPoint{
				{LocalTemp: model.Ptr(22.0), LocalHumid: model.Ptr(45.0), ComfortLevel: "2"},
				{LocalTemp: model.Ptr(22.0), LocalHumid: model.Ptr(45.0), ComfortLevel: "3"},
			})
		})

		Convey("And the level filter applies first", func() {
			points, err := e.Correlation(ctx, "3")
			So(err, ShouldBeNil)
			So(len(points), ShouldEqual, 1)
			So(points[0].ComfortLevel, ShouldEqual, "3")
		})
	})
}
