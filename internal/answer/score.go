package answer

import "github.com/reliefhq/relief/internal/vectorstore"

// normalizeScore maps a raw distance to a relevance score where larger is
// better. Each metric needs its own mapping:
//
//	cosine: distance ranges over [0, 2]; 1−d clamped to [0, 1]
//	l2:     unbounded above; 1/(1+d) maps [0, ∞) onto (0, 1]
//	ip:     the operator reports negated inner product; undo the negation
func normalizeScore(metric string, distance float64) float64 {
	switch metric {
	case vectorstore.MetricL2:
		return 1 / (1 + distance)
	case vectorstore.MetricIP:
		return -distance
	default: // cosine
		s := 1 - distance
		if s < 0 {
			return 0
		}
		if s > 1 {
			return 1
		}
		return s
	}
}
