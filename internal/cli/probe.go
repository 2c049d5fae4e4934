package cli

import (
	"context"
	"floatfetch/internal/edge"
	"floatfetch/internal/state"
	"floatfetch/internal/utils"
	"time"
)

// probeRetention is how long recorded probes are kept.
const probeRetention = 30 * 24 * time.Hour

// recordingSelector selects like edge.Selector and stores every measurement
// in the probe history. History failures never fail the selection.
type recordingSelector struct {
	selector *edge.Selector
	now      func() time.Time
}

func (r *recordingSelector) measure(ctx context.Context, candidates []edge.Candidate) ([]edge.Measurement, edge.Measurement, error) {
	ms := r.selector.Measure(ctx, candidates)
	best, err := edge.Closest(ms)

	winner := ""
	if err == nil {
		winner = best.Candidate.Host
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	if len(ms) > 0 {
		at := now()
		bg := context.WithoutCancel(ctx)
		if _, recErr := state.RecordProbes(bg, ms, winner, at); recErr != nil {
			utils.Debug("Failed to record edge probes: %v", recErr)
		} else if pruned, pruneErr := state.PruneProbes(bg, at.Add(-probeRetention)); pruneErr != nil {
			utils.Debug("Failed to prune edge probes: %v", pruneErr)
		} else if pruned > 0 {
			utils.Debug("Pruned %d old edge probes", pruned)
		}
	}
	return ms, best, err
}

// SelectClosest implements bootstrap.EdgeSelector.
func (r *recordingSelector) SelectClosest(ctx context.Context, candidates []edge.Candidate) (edge.Candidate, error) {
	if len(candidates) == 0 {
		return r.selector.SelectClosest(ctx, candidates)
	}
	_, best, err := r.measure(ctx, candidates)
	if err != nil {
		return edge.Candidate{}, err
	}
	return best.Candidate, nil
}
