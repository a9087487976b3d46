package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"palitra/internal/common/imaging"
	"palitra/internal/detector/parser"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Detect Handler
// ============================================================

type DetectHandler struct {
	maskDir string
	logger  *logrus.Entry
}

func NewDetectHandler(maskDir string, logger *logrus.Logger) *DetectHandler {
	return &DetectHandler{
		maskDir: maskDir,
		logger:  logger.WithField("component", "detector"),
	}
}

type detectResponse struct {
	Contours []parser.Contour `json:"contours"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	Source   string           `json:"source"`
}

// Detect answers with wall contours in the photo's pixel space. The walls
// come from the uploaded "mask" SVG, or from the mask stored next to the
// photo's base name when none is uploaded.
func (h *DetectHandler) Detect(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "file required in multipart/form-data"})
	}

	photo, err := readPart(fileHeader)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read file"})
	}
	info, err := imaging.Probe(photo)
	if err != nil {
		h.logger.WithError(err).WithField("photo", fileHeader.Filename).Warn("photo rejected")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "unsupported photo"})
	}

	maskData, source, err := h.mask(c, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "wall mask not found"})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read mask"})
	}

	mask, err := parser.ParseSVG(bytes.NewReader(maskData))
	if err != nil {
		h.logger.WithError(err).Warn("mask parse failed")
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	if mask.Width > 0 && mask.Height > 0 {
		mask = mask.Scale(float64(info.Width)/mask.Width, float64(info.Height)/mask.Height)
	}

	h.logger.WithFields(logrus.Fields{
		"photo":    fileHeader.Filename,
		"source":   source,
		"contours": len(mask.Contours),
	}).Info("walls detected")

	contours := mask.Contours
	if contours == nil {
		contours = []parser.Contour{}
	}
	return c.JSON(detectResponse{
		Contours: contours,
		Width:    info.Width,
		Height:   info.Height,
		Source:   source,
	})
}

func (h *DetectHandler) mask(c fiber.Ctx, photoName string) ([]byte, string, error) {
	if maskHeader, err := c.FormFile("mask"); err == nil {
		data, err := readPart(maskHeader)
		return data, "upload", err
	}

	base := strings.TrimSuffix(filepath.Base(photoName), filepath.Ext(photoName))
	if base == "" || base == "." || strings.HasPrefix(base, ".") {
		return nil, "", os.ErrNotExist
	}
	data, err := os.ReadFile(filepath.Join(h.maskDir, base+".svg"))
	return data, "sidecar", err
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
