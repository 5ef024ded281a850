package inference

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	domain "github.com/okian/wearsense/internal/domain/inference"
)

const stageDetect = "detect"

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	AnnotatedImage string   `json:"annotated_image"`
	Format         string   `json:"format"`
	Labels         []string `json:"labels"`
}

// Detector calls a remote garment detection service.
//
// Request:  {"image": "<base64>"}
// Response: {"annotated_image": "<base64>", "format": "png", "labels": ["vest", "shorts"]}
type Detector struct {
	c *client
}

var _ domain.Detector = (*Detector)(nil)

// NewDetector builds a client for the detection service at url.
func NewDetector(url string, opts ...Option) (*Detector, error) {
	c, err := newClient(url, stageDetect, opts...)
	if err != nil {
		return nil, err
	}
	return &Detector{c: c}, nil
}

// Detect sends image and splits the returned labels into garment pairs.
func (d *Detector) Detect(ctx context.Context, image []byte) (domain.Detection, error) {
	var resp detectResponse
	if err := d.c.post(ctx, stageDetect, detectRequest{Image: base64.StdEncoding.EncodeToString(image)}, &resp); err != nil {
		return domain.Detection{}, err
	}

	annotated, err := base64.StdEncoding.DecodeString(resp.AnnotatedImage)
	if err != nil {
		return domain.Detection{}, fmt.Errorf("%w: annotated_image: %w", ErrResponse, err)
	}
	if len(annotated) == 0 {
		return domain.Detection{}, fmt.Errorf("%w: annotated_image is empty", ErrResponse)
	}

	return domain.Detection{
		Annotated: annotated,
		Ext:       extension(resp.Format),
		Pairs:     domain.SplitLabels(resp.Labels),
	}, nil
}

func extension(format string) string {
	switch f := strings.ToLower(strings.TrimPrefix(format, ".")); f {
	case "":
		return ".png"
	case "jpeg":
		return ".jpg"
	default:
		return "." + f
	}
}
