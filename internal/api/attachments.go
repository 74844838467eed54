package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/google/uuid"

	"crawldesk/internal/core"
	"crawldesk/internal/logging"
)

// UploadAttachment uploads file bytes and returns the backend-registered
// attachment. Validation (type/size) happens in the attachment manager
// before this is ever called.
func (c *Client) UploadAttachment(ctx context.Context, filename, contentType string, data []byte) (*core.Attachment, error) {
	c.throttle()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attachments", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	timer := logging.StartTimer(logging.CategoryAttach, "upload "+filename)
	resp, err := c.httpClient.Do(req)
	timer.Stop()
	if err != nil {
		return nil, fmt.Errorf("upload of %s failed: %w", filename, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, body)
	}

	var payload attachmentPayload
	if err := decodeJSON(body, &payload); err != nil {
		return nil, err
	}
	logging.Attach("uploaded %s as %s (%d bytes)", filename, payload.ID, payload.SizeBytes)
	return payload.toCore(), nil
}

// DeleteAttachment requests server-side deletion of an uploaded attachment.
// Callers treat this as fire-and-forget; a failure here never blocks the UI.
func (c *Client) DeleteAttachment(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/attachments/"+id, nil, nil)
}
