// Package textures fetches texture images so the editor knows when a
// texture referenced by a region can be drawn.
package textures

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"palitra/internal/common/imaging"

	"github.com/sirupsen/logrus"
)

// maxTextureBytes caps a single texture download.
const maxTextureBytes = 32 << 20

// ============================================================
// HTTP Loader
// ============================================================

type Loader struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	logger  *logrus.Entry
}

func NewLoader(baseURL string, timeout time.Duration, logger *logrus.Logger) *Loader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{
		client:  http.DefaultClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.WithField("component", "textures"),
	}
}

// Load fetches the texture in the background and calls done once with its
// natural size or the failure.
func (l *Loader) Load(textureID string, done func(imaging.Info, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		info, err := l.Fetch(ctx, textureID)
		if err != nil {
			l.logger.WithError(err).WithField("texture", textureID).Debug("texture fetch failed")
		}
		done(info, err)
	}()
}

// Fetch downloads one texture and probes its size.
func (l *Loader) Fetch(ctx context.Context, textureID string) (imaging.Info, error) {
	target, err := l.resolve(textureID)
	if err != nil {
		return imaging.Info{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return imaging.Info{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return imaging.Info{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return imaging.Info{}, fmt.Errorf("texture %s: status %d", textureID, resp.StatusCode)
	}

	info, err := imaging.ProbeReader(io.LimitReader(resp.Body, maxTextureBytes))
	if err != nil {
		return imaging.Info{}, fmt.Errorf("texture %s: %w", textureID, err)
	}
	return info, nil
}

// resolve turns a texture id into a URL. Absolute http(s) ids are used as
// they are; anything else is a path under the base URL.
func (l *Loader) resolve(textureID string) (string, error) {
	if textureID == "" {
		return "", fmt.Errorf("empty texture id")
	}
	if u, err := url.Parse(textureID); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return textureID, nil
	}
	if l.baseURL == "" {
		return "", fmt.Errorf("texture %s: not a url and no texture base configured", textureID)
	}
	return l.baseURL + "/" + strings.TrimLeft(textureID, "/"), nil
}
