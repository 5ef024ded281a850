package service

import (
	"path"

	"github.com/okian/wearsense/internal/domain/model"
	"github.com/okian/wearsense/internal/domain/types"
)

// MediaPrefix is the URL prefix stored files are served under.
const MediaPrefix = "/media/"

func predictionView(p model.Prediction) types.PredictionView { //nolint:gocritic // hugeParam
	return types.PredictionView{
		ID:             p.ID,
		Integrate:      p.SessionID,
		PredictedUpper: p.Upper,
		PredictedLower: p.Lower,
		Timestamp:      p.Timestamp,
	}
}

func imageView(img model.Image) types.ImageView { //nolint:gocritic // hugeParam
	return types.ImageView{
		ID:            img.ID,
		Integrate:     img.SessionID,
		DetectedImage: path.Join(MediaPrefix, img.FileName),
		Timestamp:     img.Timestamp,
	}
}

func sensorView(s model.Sensor) types.SensorView { //nolint:gocritic // hugeParam
	return types.SensorView{
		ID:         s.ID,
		Integrate:  s.SessionID,
		LocalTemp:  s.Temperature,
		LocalHumid: s.Humidity,
		Timestamp:  s.Timestamp,
	}
}

func comfortView(c model.Comfort) types.ComfortView {
	return types.ComfortView{
		ID:        c.ID,
		Integrate: c.SessionID,
		Comfort:   c.Level,
		Timestamp: c.Timestamp,
	}
}

func mapViews[M, V any](in []M, conv func(M) V) []V {
	out := make([]V, 0, len(in))
	for _, m := range in {
		out = append(out, conv(m))
	}
	return out
}
