package pipeline

// ShrinkRatio reports compressed size as a percentage of the original.
// Computed only after a pipeline reaches Complete.
func ShrinkRatio(compressed, original int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(compressed) / float64(original) * 100
}

// ExpandRatio reports the signed growth of decompressed output relative to
// the compressed input, e.g. 150 for a 2.5x expansion.
func ExpandRatio(decompressed, compressed int64) float64 {
	if compressed <= 0 {
		return 0
	}
	return (float64(decompressed)/float64(compressed) - 1) * 100
}
