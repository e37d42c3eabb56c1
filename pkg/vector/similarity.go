package vector

import "math"

// CosineSimilarity returns dot(a,b) / (|a| * |b|). If either vector has a
// zero norm the similarity is 0. Vectors of different lengths yield a
// DimensionMismatchError.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, DimensionMismatchError{Want: len(a), Got: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
