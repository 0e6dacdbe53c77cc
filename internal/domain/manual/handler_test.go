package manual

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/osteocare/osteocare/internal/domain/assessment"
)

func newTestContext(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/predict/manual", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandlerPredict_OK(t *testing.T) {
	h := NewHandler(NewService(nil, nil, zerolog.Nop()))
	e := echo.New()

	c, rec := newTestContext(e, `{"features":[45,1,75,175,25,2,1,2,0,0,1,1,0,0]}`)
	if err := h.Predict(c); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var a assessment.Assessment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if a.Prediction != assessment.Osteopenia {
		t.Errorf("prediction = %s, want Osteopenia", a.Prediction)
	}
}

func TestHandlerPredict_TooManyFeatures(t *testing.T) {
	h := NewHandler(NewService(nil, nil, zerolog.Nop()))
	e := echo.New()

	c, _ := newTestContext(e, `{"features":[1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16,17,18,19,20,21]}`)
	err := h.Predict(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestHandlerPredict_EmptyFeatures(t *testing.T) {
	h := NewHandler(NewService(nil, nil, zerolog.Nop()))
	e := echo.New()

	c, _ := newTestContext(e, `{"features":[]}`)
	err := h.Predict(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestHandlerPredict_MalformedBody(t *testing.T) {
	h := NewHandler(NewService(nil, nil, zerolog.Nop()))
	e := echo.New()

	c, _ := newTestContext(e, `{"features": "not a list"}`)
	err := h.Predict(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
