// Package inference defines the contracts for trained-model providers and
// the deterministic arithmetic layered on top of their raw output: label
// refinement, confidence calibration, the cross-sectional (MPR) confidence
// boost, and the hash-derived fallback generator.
package inference

import "context"

// TabularModel is a trained classifier over a numeric clinical feature
// vector. A nil TabularModel means no model is loaded, which is a valid
// state every orchestrator must check before calling.
type TabularModel interface {
	// Predict returns the winning class index for the feature vector.
	Predict(ctx context.Context, features []float64) (int, error)
	// PredictProba returns the per-class probability vector.
	PredictProba(ctx context.Context, features []float64) ([]float64, error)
}

// ImageModel is a trained 3-class image classifier
// (Normal, Osteopenia, Osteoporosis). A nil ImageModel means not loaded.
type ImageModel interface {
	// Infer returns the 3-class probability vector for the image bytes.
	Infer(ctx context.Context, image []byte) ([]float64, error)
}
