package proxy

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Proxy
// ============================================================

type Proxy struct {
	client *http.Client
	logger *logrus.Entry
}

func New(logger *logrus.Logger) *Proxy {
	return &Proxy{
		client: http.DefaultClient,
		logger: logger.WithField("component", "proxy"),
	}
}

// To forwards every request to a fixed upstream URL.
func (p *Proxy) To(targetURL string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return p.Forward(c, targetURL)
	}
}

// Prefix forwards requests to base joined with the wildcard part of the
// route, for routes registered as "/prefix/*".
func (p *Proxy) Prefix(base string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return p.Forward(c, strings.TrimRight(base, "/")+"/"+c.Params("*"))
	}
}

// Forward proxies the request to targetURL, keeping its method, query
// string and body. Multipart bodies are re-encoded.
func (p *Proxy) Forward(c fiber.Ctx, targetURL string) error {
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		targetURL += "?" + qs
	}
	p.logger.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"target": targetURL,
		"bytes":  len(c.Body()),
	}).Debug("forwarding")

	contentType := c.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return p.sendRaw(c, targetURL, contentType)
	}
	return p.sendMultipart(c, targetURL)
}

func (p *Proxy) sendRaw(c fiber.Ctx, targetURL, contentType string) error {
	var body io.Reader
	if len(c.Body()) > 0 {
		body = bytes.NewReader(c.Body())
	}
	req, err := http.NewRequest(c.Method(), targetURL, body)
	if err != nil {
		p.logger.WithError(err).Error("build request")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return p.send(c, req)
}

func (p *Proxy) sendMultipart(c fiber.Ctx, targetURL string) error {
	form, err := c.MultipartForm()
	if err != nil {
		p.logger.WithError(err).Warn("parse multipart")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data"})
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, files := range form.File {
		for _, fileHeader := range files {
			if err := copyFilePart(writer, key, fileHeader); err != nil {
				p.logger.WithError(err).WithField("field", key).Warn("skipping multipart file")
			}
		}
	}
	for key, values := range form.Value {
		for _, value := range values {
			_ = writer.WriteField(key, value)
		}
	}
	writer.Close()

	req, err := http.NewRequest(c.Method(), targetURL, bytes.NewReader(body.Bytes()))
	if err != nil {
		p.logger.WithError(err).Error("build multipart request")
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return p.send(c, req)
}

func copyFilePart(writer *multipart.Writer, key string, fileHeader *multipart.FileHeader) error {
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, key, fileHeader.Filename))
	if ct := fileHeader.Header.Get("Content-Type"); ct != "" {
		h.Set("Content-Type", ct)
	}
	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func (p *Proxy) send(c fiber.Ctx, req *http.Request) error {
	if auth := c.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithError(err).WithField("target", req.URL.String()).Warn("upstream unreachable")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}
	defer resp.Body.Close()

	return p.copyResponse(c, resp)
}

func (p *Proxy) copyResponse(c fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.WithError(err).Warn("read upstream response")
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response"})
	}

	for key, values := range resp.Header {
		if len(values) > 0 && !strings.EqualFold(key, "Content-Length") {
			c.Set(key, values[0])
		}
	}

	c.Status(resp.StatusCode)
	return c.Send(data)
}
