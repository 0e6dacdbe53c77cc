package mri

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

var allowedTypes = map[string]bool{
	"image/jpeg":        true,
	"image/jpg":         true,
	"image/png":         true,
	"image/tiff":        true,
	"image/bmp":         true,
	"image/webp":        true,
	"image/dicom":       true,
	"application/dicom": true,
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/mri", h.Predict)
}

// Predict classifies an uploaded MRI or CT scan image.
func (h *Handler) Predict(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	ctype := fh.Header.Get("Content-Type")
	if !allowedTypes[ctype] {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType,
			fmt.Sprintf("Unsupported file type '%s'. Allowed: JPEG, PNG, TIFF, BMP, DICOM, WebP", ctype))
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
