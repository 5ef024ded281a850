package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/wearsense/internal/app"
	"github.com/okian/wearsense/internal/domain/apperr"
	"github.com/okian/wearsense/internal/domain/types"
)

type recordingIngester struct {
	got []service.SensorInput
	err error
}

func (r *recordingIngester) IngestSensor(_ context.Context, in service.SensorInput) (types.SensorView, error) {
	if r.err != nil {
		return types.SensorView{}, r.err
	}
	r.got = append(r.got, in)
	return types.SensorView{LocalTemp: in.Temperature, LocalHumid: in.Humidity}, nil
}

func TestSubscriberHandle(t *testing.T) {
	Convey("Given a subscriber with a recording ingester", t, func() {
		ing := &recordingIngester{}
		s := NewSubscriber("tcp://localhost:1883", "wearsense/sensors", "test", ing)
		ctx := context.Background()

		Convey("When a complete reading arrives", func() {
			err := s.Handle(ctx, []byte(`{"secret":"board-7","local_temp":21.5,"local_humid":48,"timestamp":"2024-05-01T10:00:00Z"}`))

			Convey("Then it is ingested with its timestamp", func() {
				So(err, ShouldBeNil)
				So(ing.got, ShouldHaveLength, 1)
				So(ing.got[0].Secret, ShouldEqual, "board-7")
				So(*ing.got[0].Temperature, ShouldEqual, 21.5)
				So(*ing.got[0].Humidity, ShouldEqual, 48.0)
				So(ing.got[0].Timestamp.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When a reading omits humidity", func() {
			err := s.Handle(ctx, []byte(`{"secret":"board-7","local_temp":21.5}`))

			Convey("Then the ingester sees a nil humidity", func() {
				So(err, ShouldBeNil)
				So(ing.got[0].Humidity, ShouldBeNil)
				So(ing.got[0].Timestamp.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When the payload is not JSON", func() {
			err := s.Handle(ctx, []byte(`temp=21`))

			Convey("Then ErrInvalidPayload is returned", func() {
				So(errors.Is(err, ErrInvalidPayload), ShouldBeTrue)
				So(ing.got, ShouldBeEmpty)
			})
		})

		Convey("When a number field holds text", func() {
			err := s.Handle(ctx, []byte(`{"secret":"board-7","local_temp":"warm","local_humid":48}`))

			Convey("Then ErrInvalidPayload is returned", func() {
				So(errors.Is(err, ErrInvalidPayload), ShouldBeTrue)
			})
		})

		Convey("When the ingester rejects the reading", func() {
			ing.err = apperr.NewKind("test", apperr.ErrInvalidSecret, service.MsgInvalidSecret)
			err := s.Handle(ctx, []byte(`{"secret":"nope","local_temp":1,"local_humid":2}`))

			Convey("Then the rejection is passed through", func() {
				So(errors.Is(err, apperr.ErrInvalidSecret), ShouldBeTrue)
			})
		})
	})
}

func TestSubscriberOptions(t *testing.T) {
	Convey("Given subscriber options", t, func() {
		s := NewSubscriber("tcp://broker.local:1883", "t", "client-1", &recordingIngester{},
			WithQoS(2),
			WithQoS(7),
			WithConnectTimeout(time.Second),
		)

		Convey("Then invalid values are ignored and paho options are derived", func() {
			So(s.qos, ShouldEqual, 2)
			So(s.connectTimeout, ShouldEqual, time.Second)

			opts := s.clientOptions()
			So(opts.Servers, ShouldHaveLength, 1)
			So(opts.Servers[0].Host, ShouldEqual, "broker.local:1883")
			So(opts.ClientID, ShouldEqual, "client-1")
			So(opts.AutoReconnect, ShouldBeTrue)
			So(opts.CleanSession, ShouldBeTrue)
		})

		Convey("Then stopping an unstarted subscriber is a no-op", func() {
			So(func() { s.Stop() }, ShouldNotPanic)
		})
	})
}
