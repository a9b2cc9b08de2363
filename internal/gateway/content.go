package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

type GenerateRequest struct {
	Content   string
	Image     *Image
	Platforms []string
}

type PublishRequest struct {
	Content     string
	Image       *Image
	Platforms   []string
	Credentials map[string]map[string]string
}

type generateResponse struct {
	Content *string `json:"content"`
}

// Generate returns the finalized post text produced by the generation service.
func (c *Client) Generate(ctx context.Context, in GenerateRequest) (string, error) {
	if c.generateURL == "" {
		return "", ErrNotConfigured
	}

	form, contentType, err := buildForm(in.Content, in.Image, in.Platforms, nil)
	if err != nil {
		return "", err
	}

	body, err := c.do(ctx, endpointGenerate, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.generateURL, bytes.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil || result.Content == nil {
		return "", fmt.Errorf("%s: %w: malformed reply", endpointGenerate, ErrUnavailable)
	}
	return *result.Content, nil
}

// Publish forwards the final post and one credentials blob per platform.
func (c *Client) Publish(ctx context.Context, in PublishRequest) error {
	if c.publishURL == "" {
		return ErrNotConfigured
	}

	form, contentType, err := buildForm(in.Content, in.Image, in.Platforms, in.Credentials)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, endpointPublish, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.publishURL, bytes.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	return err
}

func buildForm(content string, image *Image, platforms []string, credentials map[string]map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("content", content); err != nil {
		return nil, "", err
	}

	if platforms == nil {
		platforms = []string{}
	}
	encoded, err := json.Marshal(platforms)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("platforms", string(encoded)); err != nil {
		return nil, "", err
	}

	for _, platform := range platforms {
		fields, ok := credentials[platform]
		if !ok {
			continue
		}
		blob, err := json.Marshal(fields)
		if err != nil {
			return nil, "", err
		}
		if err := w.WriteField(platform+"_credentials", string(blob)); err != nil {
			return nil, "", err
		}
	}

	if image != nil && len(image.Data) > 0 {
		h := make(textproto.MIMEHeader)
		name := image.Name
		if name == "" {
			name = "image"
		}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(name)))
		if image.ContentType != "" {
			h.Set("Content-Type", image.ContentType)
		} else {
			h.Set("Content-Type", "application/octet-stream")
		}
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(image.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
