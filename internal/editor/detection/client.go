// Package detection talks to the wall detector and turns its answer into
// validated contours in image-pixel space.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"palitra/internal/editor/geometry"

	"github.com/sirupsen/logrus"
)

var ErrNoContours = errors.New("detector returned no usable contours")

// ============================================================
// Detector Client
// ============================================================

type Client struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Entry
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		logger:  logger.WithField("component", "detection"),
	}
}

// Detect uploads the photo to the detector's /detect endpoint and returns
// the contours it found. Contours with fewer than three points or
// non-finite coordinates are dropped here; if none remain the result is
// ErrNoContours.
func (c *Client) Detect(ctx context.Context, name string, photo []byte) ([][]geometry.Point, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("detector url is empty")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(photo); err != nil {
		return nil, err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("detector status %d", resp.StatusCode)
	}

	raw, err := Decode(data)
	if err != nil {
		return nil, err
	}
	contours := c.validate(raw)
	if len(contours) == 0 {
		return nil, ErrNoContours
	}
	return contours, nil
}

func (c *Client) validate(raw [][]float64) [][]geometry.Point {
	out := make([][]geometry.Point, 0, len(raw))
	for i, flat := range raw {
		points := geometry.Pairs(flat)
		if !geometry.Valid(points) {
			c.logger.WithFields(logrus.Fields{"index": i, "values": len(flat)}).Warn("dropping invalid contour")
			continue
		}
		out = append(out, points)
	}
	return out
}

// ============================================================
// Response shapes
// ============================================================

type mask struct {
	Points json.RawMessage `json:"points"`
}

// entry is one contour: a flat x,y list, a list of [x,y] pairs, or an
// object carrying either of those under "points".
type entry []float64

func (e *entry) UnmarshalJSON(data []byte) error {
	if flat, ok := coords(data); ok {
		*e = flat
		return nil
	}
	var m mask
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("contour: %w", err)
	}
	if len(m.Points) == 0 {
		*e = nil
		return nil
	}
	flat, ok := coords(m.Points)
	if !ok {
		return fmt.Errorf("contour: points are neither numbers nor point pairs")
	}
	*e = flat
	return nil
}

// coords reads a flat number list or a list of pairs into a flat list. A
// pair without exactly two numbers empties the contour so validation drops it.
func coords(data []byte) ([]float64, bool) {
	var flat []float64
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat, true
	}
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, false
	}
	out := make([]float64, 0, 2*len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			return []float64{}, true
		}
		out = append(out, p[0], p[1])
	}
	return out, true
}

type envelope struct {
	Contours []entry `json:"contours"`
	Masks    []entry `json:"masks"`
	Output   []entry `json:"output"`
}

// Decode accepts the detector answer in any of the shapes detectors are
// known to produce: {"contours": [...]}, {"masks": [...]}, {"output": [...]}
// or a top-level array. Each contour is a flat x,y list, a list of [x,y]
// pairs, or {"points": ...} holding either.
func Decode(data []byte) ([][]float64, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode detector response: empty body")
	}

	var entries []entry
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode detector response: %w", err)
		}
	} else {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode detector response: %w", err)
		}
		switch {
		case env.Contours != nil:
			entries = env.Contours
		case env.Masks != nil:
			entries = env.Masks
		default:
			entries = env.Output
		}
	}

	out := make([][]float64, 0, len(entries))
	for _, e := range entries {
		out = append(out, []float64(e))
	}
	return out, nil
}
