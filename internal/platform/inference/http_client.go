package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to a remote model server over HTTP. It implements both
// TabularModel and ImageModel.
type Client struct {
	http *resty.Client
}

// NewClient builds a model-server client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

type tabularRequest struct {
	Features []float64 `json:"features"`
}

type tabularResponse struct {
	Class         int       `json:"class"`
	Probabilities []float64 `json:"probabilities"`
}

type imageResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

func (c *Client) Predict(ctx context.Context, features []float64) (int, error) {
	var out tabularResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tabularRequest{Features: features}).
		SetResult(&out).
		Post("/v1/tabular/predict")
	if err != nil {
		return 0, fmt.Errorf("tabular predict: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("tabular predict: model server returned %s", resp.Status())
	}
	return out.Class, nil
}

func (c *Client) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	var out tabularResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tabularRequest{Features: features}).
		SetResult(&out).
		Post("/v1/tabular/predict")
	if err != nil {
		return nil, fmt.Errorf("tabular predict_proba: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tabular predict_proba: model server returned %s", resp.Status())
	}
	if len(out.Probabilities) == 0 {
		return nil, fmt.Errorf("tabular predict_proba: empty probability vector")
	}
	return out.Probabilities, nil
}

func (c *Client) Infer(ctx context.Context, image []byte) ([]float64, error) {
	var out imageResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(image).
		SetResult(&out).
		Post("/v1/image/infer")
	if err != nil {
		return nil, fmt.Errorf("image infer: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("image infer: model server returned %s", resp.Status())
	}
	if len(out.Probabilities) != 3 {
		return nil, fmt.Errorf("image infer: expected 3 class probabilities, got %d", len(out.Probabilities))
	}
	return out.Probabilities, nil
}
