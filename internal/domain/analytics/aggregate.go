package analytics

import (
	"strconv"
	"strings"

	"github.com/okian/wearsense/internal/domain/model"
	"github.com/okian/wearsense/internal/domain/types"
)

// filterLevel keeps comforts whose label equals level. An empty level keeps all.
func filterLevel(comforts []model.Comfort, level string) []model.Comfort {
	if level == "" {
		return comforts
	}
	out := make([]model.Comfort, 0, len(comforts))
	for _, c := range comforts {
		if c.Level == level {
			out = append(out, c)
		}
	}
	return out
}

// average is the mean of the labels that parse as numbers, nil when none do.
func average(comforts []model.Comfort) *float64 {
	var sum float64
	var n int
	for _, c := range comforts {
		v, err := strconv.ParseFloat(strings.TrimSpace(c.Level), 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// distribution counts distinct labels in first-occurrence order.
func distribution(comforts []model.Comfort) []types.DistributionEntry {
	out := []types.DistributionEntry{}
	index := make(map[string]int)
	for _, c := range comforts {
		i, ok := index[c.Level]
		if !ok {
			i = len(out)
			index[c.Level] = i
			out = append(out, types.DistributionEntry{Comfort: c.Level})
		}
		out[i].Count++
	}
	return out
}

// sessionData is what details needs from one session, captured once.
type sessionData struct {
	comforts  []string
	upper     []*string
	lower     []*string
	meanTemp  *float64
	meanHumid *float64
}

// meanNonZero averages the present, non-zero values.
func meanNonZero(values []*float64) *float64 {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil || *v == 0 {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

func newSessionData(predictions []model.Prediction, sensors []model.Sensor) *sessionData {
	d := &sessionData{
		upper: make([]*string, 0, len(predictions)),
		lower: make([]*string, 0, len(predictions)),
	}
	for _, p := range predictions {
		d.upper = append(d.upper, p.Upper)
		d.lower = append(d.lower, p.Lower)
	}
	temps := make([]*float64, 0, len(sensors))
	humids := make([]*float64, 0, len(sensors))
	for _, s := range sensors {
		temps = append(temps, s.Temperature)
		humids = append(humids, s.Humidity)
	}
	d.meanTemp = meanNonZero(temps)
	d.meanHumid = meanNonZero(humids)
	return d
}

// details folds sessions in first-seen order. Comfort i of a session takes
// the labels of prediction i, or NoneLabel past the end; avg_temp and
// avg_humid accumulate one session mean per comfort.
func details(order []string, sessions map[string]*sessionData) map[string]types.LevelDetail {
	out := make(map[string]types.LevelDetail)
	for _, id := range order {
		d := sessions[id]
		for i, level := range d.comforts {
			upper, lower := model.NoneLabel, model.NoneLabel
			if i < len(d.upper) {
				upper = model.LabelOrNone(d.upper[i])
				lower = model.LabelOrNone(d.lower[i])
			}

			det, ok := out[level]
			if !ok {
				det = types.LevelDetail{UpperLabels: map[string]int{}, LowerLabels: map[string]int{}}
			}
			det.Count++
			if d.meanTemp != nil {
				det.AvgTemp += *d.meanTemp
			}
			if d.meanHumid != nil {
				det.AvgHumid += *d.meanHumid
			}
			det.UpperLabels[upper]++
			det.LowerLabels[lower]++
			out[level] = det
		}
	}
	return out
}

// labelCounts histograms every upper and lower label, nil labels under NoneLabel.
func labelCounts(predictions []model.Prediction) map[string]int {
	out := make(map[string]int)
	for _, p := range predictions {
		out[model.LabelOrNone(p.Upper)]++
	}
	for _, p := range predictions {
		out[model.LabelOrNone(p.Lower)]++
	}
	return out
}
