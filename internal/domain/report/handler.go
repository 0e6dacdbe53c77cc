package report

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/tiff":      true,
	"image/bmp":       true,
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/report", h.Predict)
}

// Predict classifies an uploaded DEXA or medical report document.
func (h *Handler) Predict(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	ctype := fh.Header.Get("Content-Type")
	if !allowedTypes[ctype] {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType,
			fmt.Sprintf("Unsupported file type '%s'. Allowed: PDF, JPEG, PNG, TIFF, BMP", ctype))
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read upload")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read upload")
	}

	result := h.svc.Analyze(c.Request().Context(), content, fh.Filename)
	return c.JSON(http.StatusOK, result)
}
