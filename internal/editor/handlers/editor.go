package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"palitra/internal/editor/catalog"
	"palitra/internal/editor/detection"
	"palitra/internal/editor/geometry"
	"palitra/internal/editor/service"
	"palitra/internal/editor/workspace"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Editor Handler
// ============================================================

type EditorHandler struct {
	registry      *service.Registry
	detectTimeout time.Duration
	logger        *logrus.Entry
}

func NewEditorHandler(registry *service.Registry, detectTimeout time.Duration, logger *logrus.Logger) *EditorHandler {
	if detectTimeout <= 0 {
		detectTimeout = 30 * time.Second
	}
	return &EditorHandler{
		registry:      registry,
		detectTimeout: detectTimeout,
		logger:        logger.WithField("component", "handlers"),
	}
}

// Register mounts the editor routes.
func (h *EditorHandler) Register(r fiber.Router) {
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Delete("/projects/:id", h.DeleteProject)
	r.Post("/projects/:id/save", h.SaveProject)
	r.Post("/projects/:id/load", h.LoadProject)
	r.Get("/projects/:id/snapshot", h.ExportSnapshot)
	r.Put("/projects/:id/snapshot", h.ImportSnapshot)

	r.Get("/projects/:id/frame", h.Frame)
	r.Post("/projects/:id/photo", h.UploadPhoto)
	r.Put("/projects/:id/viewport", h.Resize)
	r.Post("/projects/:id/detect", h.Detect)

	r.Post("/projects/:id/drawing/start", h.StartDrawing)
	r.Post("/projects/:id/drawing/point", h.AddPoint)
	r.Post("/projects/:id/drawing/complete", h.CompleteDrawing)

	r.Post("/projects/:id/pointer/click", h.Click)
	r.Post("/projects/:id/pointer/leave", h.PointerLeave)
	r.Post("/projects/:id/regions/:region/click", h.RegionClick)
	r.Post("/projects/:id/regions/:region/enter", h.PointerEnter)
	r.Delete("/projects/:id/regions/selected", h.RemoveSelected)
	r.Delete("/projects/:id/regions/detected", h.ClearDetected)

	r.Get("/projects/:id/selection", h.Selection)
	r.Post("/projects/:id/selection", h.SelectMany)
	r.Post("/projects/:id/selection/toggle", h.Toggle)
	r.Post("/projects/:id/selection/detected", h.SelectAllDetected)
	r.Delete("/projects/:id/selection", h.ClearSelection)

	r.Post("/projects/:id/textures/apply", h.ApplyTexture)
	r.Post("/projects/:id/textures/clear", h.ClearTextures)
	r.Post("/projects/:id/textures/clear-all", h.ClearAllTextures)
	r.Post("/projects/:id/undo", h.Undo)
}

type pointRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type sizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type idsRequest struct {
	ID  string   `json:"id"`
	IDs []string `json:"ids"`
}

type textureRequest struct {
	TextureID string           `json:"textureId"`
	Product   *catalog.Product `json:"product"`
	RegionIDs []string         `json:"regionIds"`
}

// ============================================================
// Projects
// ============================================================

func (h *EditorHandler) ListProjects(c fiber.Ctx) error {
	ids, err := h.registry.List(context.Background())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"projects": ids})
}

func (h *EditorHandler) CreateProject(c fiber.Ctx) error {
	ws := h.registry.Create()
	return c.Status(http.StatusCreated).JSON(ws.Render())
}

func (h *EditorHandler) DeleteProject(c fiber.Ctx) error {
	if err := h.registry.Remove(context.Background(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *EditorHandler) SaveProject(c fiber.Ctx) error {
	id := c.Params("id")
	if err := h.registry.Save(context.Background(), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"saved": id})
}

// LoadProject discards unsaved changes and restores the last save.
func (h *EditorHandler) LoadProject(c fiber.Ctx) error {
	ws, err := h.registry.Reload(context.Background(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ws.Render())
}

func (h *EditorHandler) ExportSnapshot(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	blob, err := ws.Snapshot()
	if err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "application/json")
	return c.Send(blob)
}

func (h *EditorHandler) ImportSnapshot(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := ws.Restore(c.Body()); err != nil {
		if errors.Is(err, workspace.ErrClosed) {
			return h.fail(c, err)
		}
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(ws.Render())
}

// ============================================================
// Photo, viewport, detection
// ============================================================

func (h *EditorHandler) Frame(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ws.Render())
}

func (h *EditorHandler) UploadPhoto(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "file required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read file"})
	}

	id := c.Params("id")
	photo, err := h.registry.UploadPhoto(context.Background(), id, fileHeader.Filename, data)
	if err != nil {
		return h.fail(c, err)
	}
	h.logger.WithFields(logrus.Fields{"project": id, "photo": photo.Name}).Info("photo uploaded")

	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(ws.Render())
}

func (h *EditorHandler) Resize(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req sizeRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	ws.Resize(req.Width, req.Height)
	return c.JSON(ws.Render())
}

func (h *EditorHandler) Detect(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.detectTimeout)
	defer cancel()

	added, err := h.registry.Detect(ctx, c.Params("id"))
	if err != nil {
		if known(err) {
			return h.fail(c, err)
		}
		h.logger.WithError(err).WithField("project", c.Params("id")).Warn("detector failed")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "detector failed: " + err.Error()})
	}
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"added": added, "frame": ws.Render()})
}

// ============================================================
// Drawing
// ============================================================

func (h *EditorHandler) StartDrawing(c fiber.Ctx) error {
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		return ws.StartDrawing()
	})
}

func (h *EditorHandler) AddPoint(c fiber.Ctx) error {
	p, err := decodePoint(c)
	if err != nil {
		return err
	}
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		return ws.StageClick(p)
	})
}

func (h *EditorHandler) CompleteDrawing(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	r, ok := ws.CompleteDrawing()
	resp := fiber.Map{"changed": ok, "frame": ws.Render()}
	if ok {
		resp["region"] = r.ID
	}
	return c.JSON(resp)
}

// ============================================================
// Pointer
// ============================================================

func (h *EditorHandler) Click(c fiber.Ctx) error {
	p, err := decodePoint(c)
	if err != nil {
		return err
	}
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	result := ws.Click(p)
	return c.JSON(fiber.Map{"result": result, "frame": ws.Render()})
}

func (h *EditorHandler) RegionClick(c fiber.Ctx) error {
	region := c.Params("region")
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		return ws.RegionClick(region)
	})
}

func (h *EditorHandler) PointerEnter(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"cursor": ws.PointerEnter(c.Params("region"))})
}

func (h *EditorHandler) PointerLeave(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"cursor": ws.PointerLeave()})
}

// ============================================================
// Regions & selection
// ============================================================

func (h *EditorHandler) RemoveSelected(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	removed := ws.RemoveSelected()
	return c.JSON(fiber.Map{"removed": nonNil(removed), "frame": ws.Render()})
}

func (h *EditorHandler) ClearDetected(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	removed := ws.ClearDetected()
	return c.JSON(fiber.Map{"removed": nonNil(removed), "frame": ws.Render()})
}

func (h *EditorHandler) Selection(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"ids": nonNil(ws.Selected()), "summary": ws.Summary()})
}

func (h *EditorHandler) SelectMany(c fiber.Ctx) error {
	var req idsRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		return ws.SelectMany(req.IDs) > 0
	})
}

func (h *EditorHandler) Toggle(c fiber.Ctx) error {
	var req idsRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.ID == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "id required"})
	}
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		return ws.Toggle(req.ID)
	})
}

func (h *EditorHandler) SelectAllDetected(c fiber.Ctx) error {
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		return ws.SelectAllDetected() > 0
	})
}

func (h *EditorHandler) ClearSelection(c fiber.Ctx) error {
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		return ws.ClearSelection()
	})
}

// ============================================================
// Textures & history
// ============================================================

// ApplyTexture applies a texture id, or the texture picked from a catalog
// product, to the listed regions or to the selection.
func (h *EditorHandler) ApplyTexture(c fiber.Ctx) error {
	var req textureRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	textureID := req.TextureID
	if textureID == "" && req.Product != nil {
		textureID = catalog.TextureID(*req.Product)
	}
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		if len(req.RegionIDs) > 0 {
			return ws.ApplyTextureTo(req.RegionIDs, textureID)
		}
		return ws.ApplyTexture(textureID)
	})
}

func (h *EditorHandler) ClearTextures(c fiber.Ctx) error {
	var req textureRequest
	if len(c.Body()) > 0 {
		if err := decodeBody(c, &req); err != nil {
			return err
		}
	}
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		if len(req.RegionIDs) > 0 {
			return ws.ClearTextures(req.RegionIDs)
		}
		return ws.ClearSelectedTextures()
	})
}

func (h *EditorHandler) ClearAllTextures(c fiber.Ctx) error {
	return h.mutate(c, func(ws *workspace.Workspace) bool {
		return ws.ClearAllTextures()
	})
}

func (h *EditorHandler) Undo(c fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	kind, ok := ws.Undo()
	resp := fiber.Map{"changed": ok, "frame": ws.Render()}
	if ok {
		resp["undone"] = kind
	}
	return c.JSON(resp)
}

// ============================================================
// Helpers
// ============================================================

func (h *EditorHandler) workspace(c fiber.Ctx) (*workspace.Workspace, error) {
	return h.registry.Get(context.Background(), c.Params("id"))
}

// mutate runs one boolean workspace operation and answers with the frame.
func (h *EditorHandler) mutate(c fiber.Ctx, op func(*workspace.Workspace) bool) error {
	ws, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	changed := op(ws)
	return c.JSON(fiber.Map{"changed": changed, "frame": ws.Render()})
}

var knownErrors = []error{
	service.ErrUnknownProject,
	service.ErrInvalidPhoto,
	workspace.ErrNoPhoto,
	workspace.ErrStale,
	workspace.ErrClosed,
	detection.ErrNoContours,
	context.DeadlineExceeded,
}

func known(err error) bool {
	for _, target := range knownErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h *EditorHandler) fail(c fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUnknownProject):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidPhoto):
		status = http.StatusBadRequest
	case errors.Is(err, workspace.ErrNoPhoto), errors.Is(err, workspace.ErrStale):
		status = http.StatusConflict
	case errors.Is(err, workspace.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, detection.ErrNoContours):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		h.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func decodeBody(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return fiber.NewError(http.StatusBadRequest, "empty body")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid json")
	}
	return nil
}

func decodePoint(c fiber.Ctx) (geometry.Point, error) {
	var req pointRequest
	if err := decodeBody(c, &req); err != nil {
		return geometry.Point{}, err
	}
	if req.X == nil || req.Y == nil {
		return geometry.Point{}, fiber.NewError(http.StatusBadRequest, "x and y required")
	}
	return geometry.Point{X: *req.X, Y: *req.Y}, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
