package store

import "math"

// CosineSimilarity returns dot(a,b) / (|a|*|b|) clamped to [-1, 1]. A zero vector scores 0.
// Callers must pass vectors of equal length.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return max(-1, min(1, score))
}
