package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/wearsense/internal/domain/types"
)

// handleReport handles GET /api/integrate.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Report(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAverage handles GET /api/integrate/average-comfort-level[/{level}].
func (s *Server) handleAverage(w http.ResponseWriter, r *http.Request) {
	avg, err := s.deps.AverageComfortLevel(r.Context(), mux.Vars(r)["level"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*float64{"avg_comfort_level": avg})
}

// handleDistribution handles GET /api/integrate/comfort-level-distribution[/{level}].
func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := s.deps.Distribution(r.Context(), mux.Vars(r)["level"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if dist == nil {
		dist = []types.DistributionEntry{}
	}
	writeJSON(w, http.StatusOK, map[string][]types.DistributionEntry{"comfort_level_distribution": dist})
}

// handleDetails handles GET /api/integrate/comfort-level-details[/{level}].
func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.deps.Details(r.Context(), mux.Vars(r)["level"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if details == nil {
		details = map[string]types.LevelDetail{}
	}
	writeJSON(w, http.StatusOK, map[string]map[string]types.LevelDetail{"comfort_level_details": details})
}

// handleLabelCounts handles GET /api/integrate/label-counts[/{label}]. With a
// label the body is {<label>: n}.
func (s *Server) handleLabelCounts(w http.ResponseWriter, r *http.Request) {
	if label, ok := mux.Vars(r)["label"]; ok {
		n, err := s.deps.LabelCount(r.Context(), label)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{label: n})
		return
	}

	counts, err := s.deps.LabelCounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}
	writeJSON(w, http.StatusOK, map[string]map[string]int{"label_counts": counts})
}

// handleCorrelation handles GET /api/integrate/correlation[/{level}].
func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	points, err := s.deps.Correlation(r.Context(), mux.Vars(r)["level"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if points == nil {
		points = []types.CorrelationPoint{}
	}
	writeJSON(w, http.StatusOK, map[string][]types.CorrelationPoint{"data": points})
}
