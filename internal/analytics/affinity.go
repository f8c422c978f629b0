package analytics

import (
	"context"
	"math"
	"sort"

	"tunescope/internal/model"
)

// Affinity modes. The upstream selects the combination rule with a numeric
// flag whose mapping comes from its changelog, not its documentation; the
// constants isolate that assumption in one place.
const (
	AffinityModeAverage = "average"
	AffinityModeMinima  = "minima"

	affinityFlagAverage = 0
	affinityFlagMinima  = 1
)

const maxAffinityUsers = 5

// Affinity fetches the shared-track ranking for two or more distinct users.
// Validation happens before any upstream call.
func (e *Engine) Affinity(ctx context.Context, userIDs []string, mode string, limit int, p model.Period) (model.AffinityResult, error) {
	if len(userIDs) < 2 {
		return model.AffinityResult{}, model.Invalid("user_ids", "affinity needs at least 2 user ids, got %d", len(userIDs))
	}
	if len(userIDs) > maxAffinityUsers {
		return model.AffinityResult{}, model.Invalid("user_ids", "affinity supports at most %d user ids, got %d", maxAffinityUsers, len(userIDs))
	}
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			return model.AffinityResult{}, model.Invalid("user_ids", "user ids must be non-empty")
		}
		if _, dup := seen[id]; dup {
			return model.AffinityResult{}, model.Invalid("user_ids", "duplicate user id %q", id)
		}
		seen[id] = struct{}{}
	}

	var flag int
	switch mode {
	case AffinityModeAverage, "":
		mode, flag = AffinityModeAverage, affinityFlagAverage
	case AffinityModeMinima:
		flag = affinityFlagMinima
	default:
		return model.AffinityResult{}, model.Invalid("mode", "must be %q or %q", AffinityModeAverage, AffinityModeMinima)
	}

	rows, err := e.stats.CollaborativeTop(ctx, userIDs, flag, limit, p)
	if err != nil {
		return model.AffinityResult{}, err
	}

	result := model.AffinityResult{UserIDs: userIDs, Mode: mode}
	for _, row := range rows {
		track := model.AffinityTrack{Track: row.Track, Score: row.Score, PlaysByUser: row.PlaysByUser}
		// When the upstream omits the per-user split, distribute the combined
		// score evenly and mark the result as approximated.
		if len(track.PlaysByUser) == 0 {
			track.PlaysByUser = evenSplit(row.Score, userIDs)
			track.Approximated = true
		}
		result.Tracks = append(result.Tracks, track)
	}
	sort.SliceStable(result.Tracks, func(i, j int) bool {
		return result.Tracks[i].Score > result.Tracks[j].Score
	})
	return result, nil
}

func evenSplit(score float64, userIDs []string) map[string]int64 {
	share := int64(math.Round(score / float64(len(userIDs))))
	split := make(map[string]int64, len(userIDs))
	for _, id := range userIDs {
		split[id] = share
	}
	return split
}
