package inference_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/wearsense/internal/adapters/inference"
	domain "github.com/okian/wearsense/internal/domain/inference"
	"github.com/okian/wearsense/internal/domain/model"
)

const (
	detectURL   = "http://models.local/detect"
	classifyURL = "http://models.local/classify"
)

func mockedClient() (*httpmock.MockTransport, *http.Client) {
	mock := httpmock.NewMockTransport()
	return mock, &http.Client{Transport: mock}
}

func TestDetector(t *testing.T) {
	convey.Convey("Given a detector backed by a mocked model service", t, func() {
		mock, hc := mockedClient()
		det, err := inference.NewDetector(detectURL, inference.WithHTTPClient(hc))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the service answers with labels", func() {
			var sent map[string]string
			mock.RegisterResponder(http.MethodPost, detectURL, func(req *http.Request) (*http.Response, error) {
				if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
					return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
				}
				return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
					"annotated_image": base64.StdEncoding.EncodeToString([]byte("annotated")),
					"format":          "jpeg",
					"labels":          []string{domain.Vest, domain.Shorts},
				})
			})

			got, err := det.Detect(context.Background(), []byte("raw"))

			convey.Convey("Then the image is sent base64 encoded and labels are split", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sent["image"], convey.ShouldEqual, base64.StdEncoding.EncodeToString([]byte("raw")))
				convey.So(string(got.Annotated), convey.ShouldEqual, "annotated")
				convey.So(got.Ext, convey.ShouldEqual, ".jpg")
				convey.So(got.Pairs, convey.ShouldHaveLength, 2)
				convey.So(*got.Pairs[0].Upper, convey.ShouldEqual, domain.Vest)
				convey.So(got.Pairs[0].Lower, convey.ShouldBeNil)
				convey.So(got.Pairs[1].Upper, convey.ShouldBeNil)
				convey.So(*got.Pairs[1].Lower, convey.ShouldEqual, domain.Shorts)
			})
		})

		convey.Convey("When the service fails", func() {
			mock.RegisterResponder(http.MethodPost, detectURL, httpmock.NewStringResponder(http.StatusInternalServerError, "cuda oom"))
			_, err := det.Detect(context.Background(), []byte("raw"))

			convey.Convey("Then ErrStatus is returned", func() {
				convey.So(errors.Is(err, inference.ErrStatus), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the response is not base64", func() {
			mock.RegisterResponder(http.MethodPost, detectURL, httpmock.NewStringResponder(http.StatusOK, `{"annotated_image":"%%%","labels":[]}`))
			_, err := det.Detect(context.Background(), []byte("raw"))

			convey.Convey("Then ErrResponse is returned", func() {
				convey.So(errors.Is(err, inference.ErrResponse), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the context expires before the service answers", func() {
			mock.RegisterResponder(http.MethodPost, detectURL,
				httpmock.NewStringResponder(http.StatusOK, `{}`).Delay(time.Second))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err := det.Detect(ctx, []byte("raw"))

			convey.Convey("Then the call is aborted", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given an empty url", t, func() {
		_, err := inference.NewDetector("")

		convey.Convey("Then construction fails", func() {
			convey.So(errors.Is(err, inference.ErrNoURL), convey.ShouldBeTrue)
		})
	})
}

func TestClassifier(t *testing.T) {
	convey.Convey("Given a classifier backed by a mocked model service", t, func() {
		mock, hc := mockedClient()
		cls, err := inference.NewClassifier(classifyURL, inference.WithHTTPClient(hc))
		convey.So(err, convey.ShouldBeNil)

		pairs := []model.GarmentPair{
			{Upper: model.Ptr(domain.LongSleeveDress)},
			{Upper: model.Ptr(domain.LongSleeveTop), Lower: model.Ptr(domain.Trousers)},
		}

		convey.Convey("When the service returns one label per pair", func() {
			var sent struct {
				Pairs []struct {
					Upper *string `json:"upper"`
					Lower *string `json:"lower"`
				} `json:"pairs"`
				Temp  float64 `json:"local_temp"`
				Humid float64 `json:"local_humid"`
			}
			mock.RegisterResponder(http.MethodPost, classifyURL, func(req *http.Request) (*http.Response, error) {
				if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
					return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
				}
				return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"labels": []string{"3", "2"}})
			})

			labels, err := cls.Classify(context.Background(), pairs, 24.5, 60)

			convey.Convey("Then labels come back and dresses are mapped to top plus skirt", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(labels, convey.ShouldResemble, []string{"3", "2"})
				convey.So(sent.Temp, convey.ShouldEqual, 24.5)
				convey.So(sent.Humid, convey.ShouldEqual, 60)
				convey.So(sent.Pairs, convey.ShouldHaveLength, 2)
				convey.So(*sent.Pairs[0].Upper, convey.ShouldEqual, domain.LongSleeveTop)
				convey.So(*sent.Pairs[0].Lower, convey.ShouldEqual, domain.Skirt)
				convey.So(*sent.Pairs[1].Upper, convey.ShouldEqual, domain.LongSleeveTop)
				convey.So(*sent.Pairs[1].Lower, convey.ShouldEqual, domain.Trousers)
			})
		})

		convey.Convey("When the service returns too few labels", func() {
			mock.RegisterResponder(http.MethodPost, classifyURL, httpmock.NewStringResponder(http.StatusOK, `{"labels":["3"]}`))
			_, err := cls.Classify(context.Background(), pairs, 24.5, 60)

			convey.Convey("Then ErrLabelMismatch is returned", func() {
				convey.So(errors.Is(err, domain.ErrLabelMismatch), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the body is not JSON", func() {
			mock.RegisterResponder(http.MethodPost, classifyURL, httpmock.NewStringResponder(http.StatusOK, `<html>`))
			_, err := cls.Classify(context.Background(), pairs, 24.5, 60)

			convey.Convey("Then ErrResponse is returned", func() {
				convey.So(errors.Is(err, inference.ErrResponse), convey.ShouldBeTrue)
			})
		})
	})
}
