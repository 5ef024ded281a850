// Package inference defines the contracts of the garment detection and
// comfort classification model services, the label vocabulary they share,
// and deterministic in-process stand-ins used when no service URL is
// configured.
package inference

import (
	"context"
	"errors"

	"github.com/okian/wearsense/internal/domain/model"
)

// Sentinel kinds for inference errors.
var (
	ErrUndecodableImage = errors.New("image could not be decoded")
	ErrLabelMismatch    = errors.New("classifier returned a label count different from the pair count")
)

// Detection is the detector output for one image.
type Detection struct {
	// Annotated is the rendered image with detections drawn on it.
	Annotated []byte
	// Ext is the file extension matching Annotated, e.g. ".png".
	Ext string
	// Pairs are the detected garments in detector order.
	Pairs []model.GarmentPair
}

// Detector segments an image into garment pairs.
type Detector interface {
	Detect(ctx context.Context, image []byte) (Detection, error)
}

// Classifier predicts one comfort label per garment pair for a single
// temperature and humidity reading.
type Classifier interface {
	Classify(ctx context.Context, pairs []model.GarmentPair, temperature, humidity float64) ([]string, error)
}
