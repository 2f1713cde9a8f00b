package routing

// Efficiency blend targets: a strong route has about ten stops, stays under
// 200 km and under eight hours.
const (
	idealStops       = 10
	idealDistanceKm  = 200.0
	idealDurationMin = 480.0
)

// efficiency scores a constructed route in [0,1]: 30% stop-count ratio,
// 30% inverse distance, 30% inverse duration, 10% mean priority rank.
func efficiency(stops int, distanceKm float64, durationMin, rankSum int) float64 {
	if stops == 0 {
		return 0
	}
	stopScore := clamp01(float64(stops) / idealStops)
	distScore := clamp01(1 - distanceKm/idealDistanceKm)
	durScore := clamp01(1 - float64(durationMin)/idealDurationMin)
	meanRank := float64(rankSum) / float64(stops)
	rankScore := clamp01(1 - (meanRank-1)/3)

	return clamp01(0.3*stopScore + 0.3*distScore + 0.3*durScore + 0.1*rankScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
