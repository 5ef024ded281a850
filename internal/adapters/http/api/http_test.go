package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/wearsense/internal/adapters/http/api"
	service "github.com/okian/wearsense/internal/app"
	"github.com/okian/wearsense/internal/domain/apperr"
	"github.com/okian/wearsense/internal/domain/types"
	"github.com/okian/wearsense/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps records what the handlers pass through and returns canned values.
type fakeDeps struct {
	err error

	secret  string
	payload []byte
	sensor  service.SensorInput
	levels  []string
	level   string
	label   string

	labelCounts map[string]int
	distrib     []types.DistributionEntry
	avg         *float64
	panicOn     string
}

func (f *fakeDeps) IngestImage(_ context.Context, secret string, payload []byte) (types.Snapshot, error) {
	f.secret, f.payload = secret, payload
	if f.err != nil {
		return types.Snapshot{}, f.err
	}
	return types.Snapshot{
		Predictions: []types.PredictionView{},
		Images:      []types.ImageView{{ID: "i1", Integrate: secret}},
		Sensors:     []types.SensorView{},
	}, nil
}

func (f *fakeDeps) IngestSensor(_ context.Context, in service.SensorInput) (types.SensorView, error) {
	f.sensor = in
	if f.err != nil {
		return types.SensorView{}, f.err
	}
	return types.SensorView{ID: "s1", Integrate: in.Secret, LocalTemp: in.Temperature, LocalHumid: in.Humidity}, nil
}

func (f *fakeDeps) IngestComfort(_ context.Context, secret string, levels []string) ([]types.ComfortView, error) {
	f.secret, f.levels = secret, levels
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.ComfortView, 0, len(levels))
	for _, l := range levels {
		out = append(out, types.ComfortView{Integrate: secret, Comfort: l})
	}
	return out, nil
}

func (f *fakeDeps) AverageComfortLevel(_ context.Context, level string) (*float64, error) {
	f.level = level
	return f.avg, f.err
}

func (f *fakeDeps) Distribution(_ context.Context, level string) ([]types.DistributionEntry, error) {
	f.level = level
	return f.distrib, f.err
}

func (f *fakeDeps) Details(_ context.Context, level string) (map[string]types.LevelDetail, error) {
	f.level = level
	return nil, f.err
}

func (f *fakeDeps) LabelCounts(context.Context) (map[string]int, error) {
	return f.labelCounts, f.err
}

func (f *fakeDeps) LabelCount(_ context.Context, label string) (int, error) {
	f.label = label
	return f.labelCounts[label], f.err
}

func (f *fakeDeps) Correlation(_ context.Context, level string) ([]types.CorrelationPoint, error) {
	f.level = level
	return nil, f.err
}

func (f *fakeDeps) Report(context.Context) (types.Report, error) {
	if f.panicOn == "report" {
		panic("boom")
	}
	return types.Report{
		ComfortLevelDistribution: []types.DistributionEntry{},
		ComfortLevelDetails:      map[string]types.LevelDetail{},
		LabelCounts:              map[string]int{},
	}, f.err
}

type staticStats map[string]interface{}

func (s staticStats) GetStats() map[string]interface{} { return s }

func newHandler(deps api.Dependencies, opts ...api.Option) http.Handler {
	srv := api.NewServer(deps, staticStats{"started": true}, opts...)
	router := mux.NewRouter()
	srv.Register(context.Background(), router)
	return srv.Handler(router)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func multipartRequest(path, secret string, image []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if secret != "" {
		_ = mw.WriteField("secret", secret)
	}
	if image != nil {
		part, _ := mw.CreateFormFile("image", "outfit.png")
		_, _ = part.Write(image)
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16)))
	return buf.Bytes()
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestRouting(t *testing.T) {
	Convey("Given an API handler", t, func() {
		deps := &fakeDeps{}
		h := newHandler(deps)

		Convey("When calling /healthz", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

			Convey("Then Prometheus exposition is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
			})
		})

		Convey("When calling /stats", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))

			Convey("Then the provider's stats are rendered", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["started"], ShouldEqual, true)
			})
		})

		Convey("When a path carries a trailing slash", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/", http.NoBody))

			Convey("Then it reaches the same route", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w), ShouldContainKey, "label_counts")
			})
		})

		Convey("When the method does not match", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/api/predict", http.NoBody))

			Convey("Then 405 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When the path is unknown", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/api/unknown", http.NoBody))

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a handler panics", func() {
			deps.panicOn = "report"
			w := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate", http.NoBody))

			Convey("Then the panic is recovered as a 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestImageIngestHandler(t *testing.T) {
	Convey("Given an API handler", t, func() {
		deps := &fakeDeps{}
		h := newHandler(deps)

		Convey("When a multipart upload is posted", func() {
			img := pngBytes()
			w := serve(h, multipartRequest("/api/predict/", "abc", img))

			Convey("Then the payload and secret reach the service and 201 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.secret, ShouldEqual, "abc")
				So(deps.payload, ShouldResemble, img)
				So(decode(w)["images"], ShouldHaveLength, 1)
			})
		})

		Convey("When the image part is missing", func() {
			deps.err = apperr.NewKind("test", apperr.ErrMissingRequiredData, service.MsgMissingRequiredData)
			w := serve(h, multipartRequest("/api/predict", "abc", nil))

			Convey("Then the service sees no payload and 400 is returned", func() {
				So(deps.payload, ShouldBeNil)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldEqual, service.MsgMissingRequiredData)
			})
		})

		Convey("When the body exceeds the upload cap", func() {
			small := newHandler(deps, api.WithMaxUploadBytes(64))
			w := serve(small, multipartRequest("/api/predict", "abc", bytes.Repeat([]byte{1}, 1024)))

			Convey("Then 413 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})
	})
}

func TestSensorIngestHandler(t *testing.T) {
	Convey("Given an API handler", t, func() {
		deps := &fakeDeps{}
		h := newHandler(deps)

		Convey("When a urlencoded reading is posted", func() {
			w := serve(h, postForm("/api/sensor", url.Values{
				"secret": {"abc"}, "local_temp": {"21.5"}, "local_humid": {"40"},
			}))

			Convey("Then the parsed values reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.sensor.Secret, ShouldEqual, "abc")
				So(*deps.sensor.Temperature, ShouldEqual, 21.5)
				So(*deps.sensor.Humidity, ShouldEqual, 40.0)
			})
		})

		Convey("When a JSON reading is posted", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/sensor",
				strings.NewReader(`{"secret":"abc","local_temp":19,"local_humid":"55.5"}`))
			req.Header.Set("Content-Type", "application/json")
			w := serve(h, req)

			Convey("Then it is accepted like a form", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(*deps.sensor.Temperature, ShouldEqual, 19.0)
				So(*deps.sensor.Humidity, ShouldEqual, 55.5)
			})
		})

		Convey("When a value is not a number", func() {
			w := serve(h, postForm("/api/sensor", url.Values{
				"secret": {"abc"}, "local_temp": {"warm"}, "local_humid": {"40"},
			}))

			Convey("Then the field is named in the error", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldEqual, "local_temp: A valid number is required.")
			})
		})

		Convey("When the JSON body is malformed", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/sensor", strings.NewReader(`{"secret":`))
			req.Header.Set("Content-Type", "application/json")
			w := serve(h, req)

			Convey("Then it is rejected as invalid request data", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldEqual, service.MsgInvalidRequestData)
			})
		})
	})
}

func TestComfortIngestHandler(t *testing.T) {
	Convey("Given an API handler", t, func() {
		deps := &fakeDeps{}
		h := newHandler(deps)

		Convey("When one comfort value is posted", func() {
			w := serve(h, postForm("/api/comfort", url.Values{"secret": {"abc"}, "comfort": {"3"}}))

			Convey("Then a single object is returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(decode(w)["comfort"], ShouldEqual, "3")
			})
		})

		Convey("When several comfort values are posted", func() {
			w := serve(h, postForm("/api/comfort", url.Values{"secret": {"abc"}, "comfort": {"2", "4"}}))

			Convey("Then an array is returned in order", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var out []types.ComfortView
				So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
				So(out, ShouldHaveLength, 2)
				So(deps.levels, ShouldResemble, []string{"2", "4"})
			})
		})

		Convey("When the secret is unknown", func() {
			deps.err = apperr.NewKind("test", apperr.ErrInvalidSecret, service.MsgInvalidComfort)
			w := serve(h, postForm("/api/comfort", url.Values{"secret": {"nope"}, "comfort": {"1"}}))

			Convey("Then 400 carries the comfort message", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldEqual, service.MsgInvalidComfort)
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given service errors of each server-side kind", t, func() {
		cases := []struct {
			kind   error
			status int
		}{
			{apperr.ErrBackpressure, http.StatusServiceUnavailable},
			{apperr.ErrTimeout, http.StatusGatewayTimeout},
			{apperr.ErrService, http.StatusBadGateway},
			{apperr.ErrStorage, http.StatusInternalServerError},
			{errors.New("unclassified"), http.StatusInternalServerError},
		}

		for _, tc := range cases {
			deps := &fakeDeps{err: apperr.WrapKind("test", tc.kind, errors.New("secret detail"))}
			w := serve(newHandler(deps), multipartRequest("/api/predict", "abc", pngBytes()))

			So(w.Code, ShouldEqual, tc.status)
			So(w.Body.String(), ShouldNotContainSubstring, "secret detail")
			So(decode(w)["error"], ShouldEqual, http.StatusText(tc.status))
		}
	})
}

func TestIntegrateHandlers(t *testing.T) {
	Convey("Given an API handler over canned analytics", t, func() {
		avg := 2.5
		deps := &fakeDeps{
			avg:         &avg,
			labelCounts: map[string]int{"vest": 2},
			distrib:     []types.DistributionEntry{{Comfort: "2", Count: 1}},
		}
		h := newHandler(deps)

		Convey("When the average is filtered by level", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/average-comfort-level/3", http.NoBody))

			Convey("Then the level reaches the engine", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.level, ShouldEqual, "3")
				So(decode(w)["avg_comfort_level"], ShouldEqual, 2.5)
			})
		})

		Convey("When the distribution is requested", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/comfort-level-distribution", http.NoBody))

			Convey("Then it is wrapped by its key", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.level, ShouldEqual, "")
				So(w.Body.String(), ShouldContainSubstring, `"comfort_level_distribution":[{"comfort":"2","count":1}]`)
			})
		})

		Convey("When details and correlation have no data", func() {
			details := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/comfort-level-details/5/", http.NoBody))
			corr := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/correlation", http.NoBody))

			Convey("Then empty containers are rendered, never null", func() {
				So(details.Body.String(), ShouldContainSubstring, `"comfort_level_details":{}`)
				So(corr.Body.String(), ShouldContainSubstring, `"data":[]`)
			})
		})

		Convey("When a single label count is requested", func() {
			known := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/label-counts/vest", http.NoBody))
			unknown := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/label-counts/scarf", http.NoBody))

			Convey("Then the body is keyed by the label", func() {
				So(decode(known)["vest"], ShouldEqual, 2.0)
				So(decode(unknown)["scarf"], ShouldEqual, 0.0)
			})
		})

		Convey("When all label counts are requested", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/label-counts", http.NoBody))

			Convey("Then they are wrapped by label_counts", func() {
				So(w.Body.String(), ShouldContainSubstring, `"label_counts":{"vest":2}`)
			})
		})
	})
}

func TestMediaHandler(t *testing.T) {
	Convey("Given a media root with one stored file", t, func() {
		root := t.TempDir()
		So(os.MkdirAll(filepath.Join(root, "uploads"), 0o755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(root, "uploads", "a.png"), pngBytes(), 0o600), ShouldBeNil)
		h := newHandler(&fakeDeps{}, api.WithMediaRoot(root))

		Convey("Then the file is served", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/media/uploads/a.png", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "image/png")
		})

		Convey("Then missing files and directories are 404", func() {
			So(serve(h, httptest.NewRequest(http.MethodGet, "/media/uploads/b.png", http.NoBody)).Code, ShouldEqual, http.StatusNotFound)
			So(serve(h, httptest.NewRequest(http.MethodGet, "/media/uploads/", http.NoBody)).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestEndToEnd(t *testing.T) {
	Convey("Given the API over a started service", t, func() {
		root := t.TempDir()
		svc := service.New(
			service.WithMediaRoot(root),
			service.WithWorkerCount(1),
			service.WithInferenceTimeout(5*time.Second),
			service.WithSecretPolicy(false, false),
			service.WithLogger(logger.Nop()),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		h := newHandler(svc, api.WithMediaRoot(svc.MediaRoot()))

		Convey("When readings, comfort values and an image are posted", func() {
			sensor := serve(h, postForm("/api/sensor/", url.Values{
				"secret": {"kiosk"}, "local_temp": {"24"}, "local_humid": {"50"},
			}))
			comfort := serve(h, postForm("/api/comfort/", url.Values{
				"secret": {"kiosk"}, "comfort": {"1", "2", "3", "4"},
			}))
			predict := serve(h, multipartRequest("/api/predict/", "kiosk", pngBytes()))

			Convey("Then each is created and the report reflects them", func() {
				So(sensor.Code, ShouldEqual, http.StatusCreated)
				So(comfort.Code, ShouldEqual, http.StatusCreated)
				So(predict.Code, ShouldEqual, http.StatusCreated)

				var snap types.Snapshot
				So(json.Unmarshal(predict.Body.Bytes(), &snap), ShouldBeNil)
				So(snap.Images, ShouldHaveLength, 1)
				So(snap.Sensors, ShouldHaveLength, 1)
				So(snap.ComfortLevel, ShouldNotBeNil)
				So(snap.Images[0].DetectedImage, ShouldStartWith, service.MediaPrefix)

				media := serve(h, httptest.NewRequest(http.MethodGet, snap.Images[0].DetectedImage, http.NoBody))
				So(media.Code, ShouldEqual, http.StatusOK)

				avg := serve(h, httptest.NewRequest(http.MethodGet, "/api/integrate/average-comfort-level/", http.NoBody))
				So(avg.Code, ShouldEqual, http.StatusOK)
				So(decode(avg)["avg_comfort_level"], ShouldNotBeNil)
			})
		})

		Convey("When an image is posted without a secret", func() {
			w := serve(h, multipartRequest("/api/predict", "", pngBytes()))

			Convey("Then it is a 400 with the missing data message", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldEqual, service.MsgMissingRequiredData)
			})
		})

		Convey("When the upload is not an image", func() {
			w := serve(h, multipartRequest("/api/predict", "kiosk", []byte("not an image")))

			Convey("Then it is a 400 with the invalid image message", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldEqual, service.MsgInvalidImage)
			})
		})
	})
}
