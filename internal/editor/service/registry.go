// Package service keeps one live workspace per project and connects it to
// its collaborators: the blob store, photo files and the detector.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"palitra/internal/editor/geometry"
	"palitra/internal/editor/repository"
	"palitra/internal/editor/workspace"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownProject = errors.New("unknown project")
	ErrInvalidPhoto   = errors.New("invalid photo")
)

// Store persists project snapshots.
type Store interface {
	LoadBlob(ctx context.Context, id string) ([]byte, error)
	SaveBlob(ctx context.Context, id string, blob []byte) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]repository.Project, error)
}

// Detector finds wall contours in a photo.
type Detector interface {
	Detect(ctx context.Context, name string, photo []byte) ([][]geometry.Point, error)
}

// ============================================================
// Workspace Registry
// ============================================================

type Registry struct {
	mu         sync.Mutex
	workspaces map[string]*workspace.Workspace

	store    Store
	storage  *FileStorage
	detector Detector
	options  []workspace.Option
	logger   *logrus.Entry
}

func NewRegistry(store Store, storage *FileStorage, detector Detector, logger *logrus.Logger, opts ...workspace.Option) *Registry {
	return &Registry{
		workspaces: make(map[string]*workspace.Workspace),
		store:      store,
		storage:    storage,
		detector:   detector,
		options:    append([]workspace.Option{workspace.WithLogger(logger)}, opts...),
		logger:     logger.WithField("component", "registry"),
	}
}

// Create opens a fresh project with a new id.
func (r *Registry) Create() *workspace.Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	ws := workspace.New(id, r.options...)
	r.workspaces[id] = ws
	r.logger.WithField("project", id).Info("project created")
	return ws
}

// Get returns the live workspace, restoring it from the store on first use.
func (r *Registry) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[id]; ok {
		return ws, nil
	}

	blob, err := r.store.LoadBlob(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownProject
		}
		return nil, fmt.Errorf("load project %s: %w", id, err)
	}

	ws := workspace.New(id, r.options...)
	if err := ws.Restore(blob); err != nil {
		return nil, fmt.Errorf("restore project %s: %w", id, err)
	}
	r.workspaces[id] = ws
	r.logger.WithField("project", id).Info("project restored")
	return ws, nil
}

// Save writes the workspace snapshot to the store.
func (r *Registry) Save(ctx context.Context, id string) error {
	ws, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	blob, err := ws.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot project %s: %w", id, err)
	}
	return r.store.SaveBlob(ctx, id, blob)
}

// Reload drops the live workspace and restores it from the last save.
func (r *Registry) Reload(ctx context.Context, id string) (*workspace.Workspace, error) {
	blob, err := r.store.LoadBlob(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownProject
		}
		return nil, err
	}

	r.mu.Lock()
	ws, ok := r.workspaces[id]
	if !ok {
		ws = workspace.New(id, r.options...)
		r.workspaces[id] = ws
	}
	r.mu.Unlock()

	if err := ws.Restore(blob); err != nil {
		return nil, fmt.Errorf("restore project %s: %w", id, err)
	}
	return ws, nil
}

// Remove closes the workspace and deletes everything stored for it.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	ws, live := r.workspaces[id]
	delete(r.workspaces, id)
	r.mu.Unlock()

	if live {
		ws.Close()
	}
	err := r.store.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		if !live {
			return ErrUnknownProject
		}
		err = nil
	}
	if err != nil {
		return err
	}
	return r.storage.RemoveProject(id)
}

// List returns every known project id, live or stored.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	stored, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	r.mu.Lock()
	for id := range r.workspaces {
		seen[id] = struct{}{}
	}
	r.mu.Unlock()
	for _, p := range stored {
		seen[p.ID] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes every live workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ws := range r.workspaces {
		ws.Close()
		delete(r.workspaces, id)
	}
}

// ============================================================
// Photo & detection
// ============================================================

// UploadPhoto stores the photo file and loads it into the workspace.
func (r *Registry) UploadPhoto(ctx context.Context, id, name string, data []byte) (workspace.Photo, error) {
	ws, err := r.Get(ctx, id)
	if err != nil {
		return workspace.Photo{}, err
	}
	base, err := PhotoName(name)
	if err != nil {
		return workspace.Photo{}, fmt.Errorf("%w: %w", ErrInvalidPhoto, err)
	}
	if err := ws.LoadPhoto(base, data); err != nil {
		if errors.Is(err, workspace.ErrClosed) {
			return workspace.Photo{}, err
		}
		return workspace.Photo{}, fmt.Errorf("%w: %w", ErrInvalidPhoto, err)
	}
	if _, err := r.storage.SavePhoto(id, base, data); err != nil {
		return workspace.Photo{}, err
	}
	photo, _ := ws.Photo()
	return photo, nil
}

// Detect runs the detector on the project's photo and applies the result.
// It returns the ids of the new detected regions.
func (r *Registry) Detect(ctx context.Context, id string) ([]string, error) {
	ws, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ticket, err := ws.BeginDetection()
	if err != nil {
		return nil, err
	}

	photo, err := r.storage.LoadPhoto(id, ticket.Photo)
	if err != nil {
		_, finishErr := ws.FinishDetection(ticket, nil, err)
		return nil, finishErr
	}

	contours, detectErr := r.detector.Detect(ctx, ticket.Photo, photo)
	if detectErr != nil {
		r.logger.WithError(detectErr).WithField("project", id).Warn("detection failed")
	}
	return ws.FinishDetection(ticket, contours, detectErr)
}
