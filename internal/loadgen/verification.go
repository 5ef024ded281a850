package loadgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/wearsense/internal/domain/types"
)

// distributionCounts indexes a report's distribution by comfort label.
func distributionCounts(r types.Report) map[string]int {
	out := make(map[string]int, len(r.ComfortLevelDistribution))
	for _, e := range r.ComfortLevelDistribution {
		out[e.Comfort] = e.Count
	}
	return out
}

// verifyReport checks that the distribution grew by exactly the submitted
// votes. Only valid when no other client writes comfort records meanwhile.
func verifyReport(before, after types.Report, expected map[string]int) error {
	was := distributionCounts(before)
	now := distributionCounts(after)

	labels := make([]string, 0, len(expected))
	for l := range expected {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var problems []string
	for _, l := range labels {
		if got := now[l] - was[l]; got != expected[l] {
			problems = append(problems, fmt.Sprintf("comfort %q grew by %d, want %d", l, got, expected[l]))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrMismatch, strings.Join(problems, "; "))
	}
	if after.AvgComfortLevel == nil && len(now) > 0 {
		return fmt.Errorf("%w: average missing with %d labels present", ErrMismatch, len(now))
	}
	return nil
}
