package inference

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"strconv"
	"time"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/okian/wearsense/internal/domain/model"
)

const frameWidth = 4

// SimulatedDetector derives garments deterministically from the image bytes
// and draws a frame around the picture as its annotation.
type SimulatedDetector struct {
	simulation
}

// NewSimulatedDetector creates a detector stand-in.
func NewSimulatedDetector(opts ...Option) *SimulatedDetector {
	d := &SimulatedDetector{simulation{latency: defaultDetectLatency}}
	for _, opt := range opts {
		opt(&d.simulation)
	}
	return d
}

// Detect implements Detector.
func (d *SimulatedDetector) Detect(ctx context.Context, payload []byte) (Detection, error) {
	if err := d.wait(ctx); err != nil {
		return Detection{}, err
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return Detection{}, fmt.Errorf("%w: %w", ErrUndecodableImage, err)
	}

	annotated, err := annotate(img)
	if err != nil {
		return Detection{}, err
	}

	h := fnv.New64a()
	_, _ = h.Write(payload)
	sum := h.Sum64()

	n := 1 + int(sum%maxSimulatedGarments)
	raw := make([]string, 0, n)
	for i := 0; i < n; i++ {
		raw = append(raw, Catalogue[(sum>>(8*(i+1)))%uint64(len(Catalogue))])
	}

	return Detection{Annotated: annotated, Ext: ".png", Pairs: SplitLabels(raw)}, nil
}

func annotate(img image.Image) ([]byte, error) {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	yellow := image.NewUniform(color.RGBA{R: 0xff, G: 0xd7, A: 0xff})
	for _, r := range []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+frameWidth),
		image.Rect(b.Min.X, b.Max.Y-frameWidth, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+frameWidth, b.Max.Y),
		image.Rect(b.Max.X-frameWidth, b.Min.Y, b.Max.X, b.Max.Y),
	} {
		draw.Draw(out, r.Intersect(b), yellow, image.Point{}, draw.Src)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

// insulation approximates how much warmth each classifier feature adds.
var insulation = map[string]float64{
	ShortSleeveTop:     0.2,
	LongSleeveTop:      0.35,
	ShortSleeveOutwear: 0.4,
	LongSleeveOutwear:  0.6,
	Shorts:             0.1,
	Skirt:              0.15,
	Trousers:           0.3,
}

// SimulatedClassifier scores comfort on a 1 (cold) to 5 (hot) scale from the
// mapped garments and the ambient reading.
type SimulatedClassifier struct {
	simulation
}

// NewSimulatedClassifier creates a classifier stand-in.
func NewSimulatedClassifier(opts ...Option) *SimulatedClassifier {
	c := &SimulatedClassifier{simulation{latency: defaultClassifyLatency}}
	for _, opt := range opts {
		opt(&c.simulation)
	}
	return c
}

// Classify implements Classifier.
func (c *SimulatedClassifier) Classify(ctx context.Context, pairs []model.GarmentPair, temperature, humidity float64) ([]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		var clo float64
		if p.Upper != nil {
			clo += insulation[MapUpper(*p.Upper)]
		}
		if p.Lower != nil {
			clo += insulation[MapLower(*p.Lower)]
		}
		out = append(out, strconv.Itoa(comfortLevel(temperature+10*clo-0.05*(humidity-50))))
	}
	return out, nil
}

func comfortLevel(effective float64) int {
	switch {
	case effective < 18:
		return 1
	case effective < 22:
		return 2
	case effective < 26:
		return 3
	case effective < 30:
		return 4
	default:
		return 5
	}
}

func (s simulation) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
