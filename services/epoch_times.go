package services

import "sort"

// InferEpochStartTime estimates when target began from the nearest known
// epoch start, offset by whole epochs of duration seconds. The nearest
// anchor wins, and the earlier epoch wins a tie. No estimate is made
// without anchors or when it would fall before the Unix epoch.
func InferEpochStartTime(target uint32, anchors map[uint32]uint64, duration int64) (uint64, bool) {
	if len(anchors) == 0 || duration <= 0 {
		return 0, false
	}
	if start, ok := anchors[target]; ok {
		return start, true
	}

	epochs := make([]uint32, 0, len(anchors))
	for e := range anchors {
		epochs = append(epochs, e)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })

	best := epochs[0]
	bestDist := epochDistance(target, best)
	for _, e := range epochs[1:] {
		if d := epochDistance(target, e); d < bestDist {
			best, bestDist = e, d
		}
	}

	inferred := int64(anchors[best]) + (int64(target)-int64(best))*duration
	if inferred < 0 {
		return 0, false
	}
	return uint64(inferred), true
}

func epochDistance(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
