package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ============================================================
// Photo File Storage
// ============================================================

type FileStorage struct {
	root string
}

func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

func (s *FileStorage) ProjectDir(projectID string) string {
	return filepath.Join(s.root, projectID)
}

func (s *FileStorage) PhotoPath(projectID, name string) string {
	return filepath.Join(s.ProjectDir(projectID), name)
}

// PhotoName reduces an uploaded file name to a safe base name.
func PhotoName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("invalid photo name %q", name)
	}
	return base, nil
}

func (s *FileStorage) EnsureDir(projectID string) error {
	if err := os.MkdirAll(s.ProjectDir(projectID), 0o755); err != nil {
		return fmt.Errorf("mkdir project dir: %w", err)
	}
	return nil
}

// SavePhoto stores the photo under the project and returns its path.
func (s *FileStorage) SavePhoto(projectID, name string, data []byte) (string, error) {
	if err := s.EnsureDir(projectID); err != nil {
		return "", err
	}
	path := s.PhotoPath(projectID, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return path, nil
}

func (s *FileStorage) LoadPhoto(projectID, name string) ([]byte, error) {
	data, err := os.ReadFile(s.PhotoPath(projectID, name))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}

// RemoveProject deletes every file stored for the project.
func (s *FileStorage) RemoveProject(projectID string) error {
	if projectID == "" {
		return fmt.Errorf("empty project id")
	}
	return os.RemoveAll(s.ProjectDir(projectID))
}
