package track

import "tollgate-service/internal/domain/toll"

// Match pairs a track index with a detection index.
type Match struct {
	TrackIdx int
	DetIdx   int
}

// associate matches predicted track boxes against this frame's detections by
// minimum-cost bipartite assignment on 1−IoU, then rejects any matched pair
// whose overlap falls below iouThreshold. Rejected tracks and detections are
// routed back to the unmatched sets.
func associate(predicted []toll.Box, dets []toll.Detection, iouThreshold float64) (matches []Match, unmatchedTracks, unmatchedDets []int) {
	if len(predicted) == 0 {
		unmatchedDets = indexRange(len(dets))
		return nil, nil, unmatchedDets
	}
	if len(dets) == 0 {
		unmatchedTracks = indexRange(len(predicted))
		return nil, unmatchedTracks, nil
	}

	iou := make([][]float64, len(predicted))
	cost := make([][]float64, len(predicted))
	for i, p := range predicted {
		iou[i] = make([]float64, len(dets))
		cost[i] = make([]float64, len(dets))
		for j, d := range dets {
			iou[i][j] = IoU(p, d.Box)
			if iou[i][j] <= 0 {
				cost[i][j] = forbiddenCost
			} else {
				cost[i][j] = 1 - iou[i][j]
			}
		}
	}

	assignment := hungarianAssign(cost)

	matchedDets := make([]bool, len(dets))
	for i, j := range assignment {
		if j < 0 || iou[i][j] < iouThreshold {
			unmatchedTracks = append(unmatchedTracks, i)
			continue
		}
		matches = append(matches, Match{TrackIdx: i, DetIdx: j})
		matchedDets[j] = true
	}
	for j := range dets {
		if !matchedDets[j] {
			unmatchedDets = append(unmatchedDets, j)
		}
	}
	return matches, unmatchedTracks, unmatchedDets
}

func indexRange(n int) []int {
	if n == 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
