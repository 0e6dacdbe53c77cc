package manual

import "fmt"

const (
	minFeatures = 1
	maxFeatures = 20
)

// PredictionRequest is the JSON body for a manual clinical-feature prediction.
type PredictionRequest struct {
	Features []float64 `json:"features"`
}

// Validate bounds the feature count. The service pads or truncates to the
// width each scoring path expects.
func (r PredictionRequest) Validate() error {
	if len(r.Features) < minFeatures || len(r.Features) > maxFeatures {
		return fmt.Errorf("expected between %d and %d feature values, got %d",
			minFeatures, maxFeatures, len(r.Features))
	}
	return nil
}
