package inference

import (
	"context"
	"fmt"

	domain "github.com/okian/wearsense/internal/domain/inference"
	"github.com/okian/wearsense/internal/domain/model"
)

const stageClassify = "classify"

type classifyPair struct {
	Upper *string `json:"upper"`
	Lower *string `json:"lower"`
}

type classifyRequest struct {
	Pairs       []classifyPair `json:"pairs"`
	Temperature float64        `json:"local_temp"`
	Humidity    float64        `json:"local_humid"`
}

type classifyResponse struct {
	Labels []string `json:"labels"`
}

// Classifier calls a remote comfort classifier.
//
// Pair labels are mapped onto the classifier vocabulary before sending, so a
// dress travels as a top plus a skirt.
type Classifier struct {
	c *client
}

var _ domain.Classifier = (*Classifier)(nil)

// NewClassifier builds a client for the classifier service at url.
func NewClassifier(url string, opts ...Option) (*Classifier, error) {
	c, err := newClient(url, stageClassify, opts...)
	if err != nil {
		return nil, err
	}
	return &Classifier{c: c}, nil
}

// Classify returns exactly one comfort label per pair.
func (cl *Classifier) Classify(ctx context.Context, pairs []model.GarmentPair, temperature, humidity float64) ([]string, error) {
	req := classifyRequest{
		Pairs:       make([]classifyPair, 0, len(pairs)),
		Temperature: temperature,
		Humidity:    humidity,
	}
	for _, p := range pairs {
		req.Pairs = append(req.Pairs, mapPair(p))
	}

	var resp classifyResponse
	if err := cl.c.post(ctx, stageClassify, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Labels) != len(pairs) {
		return nil, fmt.Errorf("%w: got %d labels for %d pairs", domain.ErrLabelMismatch, len(resp.Labels), len(pairs))
	}
	return resp.Labels, nil
}

// mapPair fills the missing side of a dress-like upper label.
func mapPair(p model.GarmentPair) classifyPair {
	out := classifyPair{}
	if p.Upper != nil {
		u := domain.MapUpper(*p.Upper)
		out.Upper = &u
		if p.Lower == nil && u != *p.Upper {
			l := domain.MapLower(*p.Upper)
			out.Lower = &l
		}
	}
	if p.Lower != nil {
		l := domain.MapLower(*p.Lower)
		out.Lower = &l
	}
	return out
}
