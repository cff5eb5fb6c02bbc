package detect

// ThresholdPolicy is the adaptive confidence cutoff. Busy images get the
// stricter Dense threshold so the overlay stays readable.
type ThresholdPolicy struct {
	// DenseCount is the detection count above which the image is dense.
	DenseCount int `json:"dense_count"`

	// Dense is the minimum confidence kept on dense images.
	Dense float64 `json:"dense"`

	// Sparse is the minimum confidence kept otherwise.
	Sparse float64 `json:"sparse"`
}

// DefaultThresholdPolicy keeps >= 0.8 above 15 detections, >= 0.5 otherwise.
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{DenseCount: 15, Dense: 0.8, Sparse: 0.5}
}

// Threshold returns the cutoff for a list of n detections.
func (p ThresholdPolicy) Threshold(n int) float64 {
	if n > p.DenseCount {
		return p.Dense
	}
	return p.Sparse
}

// Apply returns the detections whose confidence reaches the threshold for
// len(dets), in input order, together with that threshold. The input slice
// is not modified.
func (p ThresholdPolicy) Apply(dets []Detection) ([]Detection, float64) {
	t := p.Threshold(len(dets))
	kept := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= t {
			kept = append(kept, d)
		}
	}
	return kept, t
}
