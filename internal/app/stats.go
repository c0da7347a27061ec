package app

import (
	"sort"

	"kb-diagnosis-service/internal/diagnosis"
	"kb-diagnosis-service/internal/domain"
)

// scoreStats summarizes scores. The median is the element at index len/2 of
// the ascending list; the two middle values of an even-length list are not
// averaged.
func scoreStats(scores []float64) domain.ScoreStats {
	if len(scores) == 0 {
		return domain.ScoreStats{}
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	avg := diagnosis.Round(sum/float64(len(sorted)), 2)
	median := sorted[len(sorted)/2]
	lowest := sorted[0]
	highest := sorted[len(sorted)-1]
	return domain.ScoreStats{
		AvgScore:     &avg,
		MedianScore:  &median,
		HighestScore: &highest,
		LowestScore:  &lowest,
	}
}

// percentile is the share of peers strictly below score, in percent with one decimal.
func percentile(peers []float64, score float64) float64 {
	below := 0
	for _, p := range peers {
		if p < score {
			below++
		}
	}
	return diagnosis.Round(float64(below)/float64(len(peers))*100, 1)
}
