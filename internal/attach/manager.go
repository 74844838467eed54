// Package attach manages file attachments bound to the pending Smart Query:
// client-side validation before any network call, independent batch uploads,
// best-effort server-side release, and local image previews.
package attach

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crawldesk/internal/core"
	"crawldesk/internal/logging"
)

// MaxAttachmentBytes is the upload size cap (10 MiB).
const MaxAttachmentBytes = 10 << 20

// allowedContentTypes is the attachment allow-list. Anything else is
// rejected before the backend is contacted.
var allowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Uploader is the slice of the backend client the manager needs.
type Uploader interface {
	UploadAttachment(ctx context.Context, filename, contentType string, data []byte) (*core.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}

// File is a candidate attachment before upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult is the per-file outcome of a batch upload. Uploads are
// independent; one failing does not abort its siblings.
type UploadResult struct {
	Name       string
	Attachment *core.Attachment
	Err        error
}

// ClipboardItem is one pasted clipboard entry.
type ClipboardItem struct {
	MIMEType string
	Filename string
	Data     []byte
}

// Manager owns the pending attachment list for one session.
type Manager struct {
	mu              sync.Mutex
	uploader        Uploader
	pending         []core.Attachment
	uploading       int
	previewInFlight map[string]bool
	previewWG       sync.WaitGroup
}

// NewManager creates an attachment manager over the given uploader.
func NewManager(uploader Uploader) *Manager {
	return &Manager{
		uploader:        uploader,
		previewInFlight: make(map[string]bool),
	}
}

// Validate checks the allow-list and size cap. Runs before any network
// call; a rejected file produces no traffic.
func (m *Manager) Validate(f File) error {
	if !allowedContentTypes[f.ContentType] {
		return fmt.Errorf("%w: %s", core.ErrInvalidAttachmentType, f.ContentType)
	}
	if int64(len(f.Data)) > MaxAttachmentBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", core.ErrAttachmentTooLarge, len(f.Data), MaxAttachmentBytes)
	}
	return nil
}

// Upload validates and uploads a single file. On success the attachment
// joins the pending list; for image types a local data-URI preview is
// rendered asynchronously (preview failure never fails the upload).
func (m *Manager) Upload(ctx context.Context, f File) (*core.Attachment, error) {
	if err := m.Validate(f); err != nil {
		logging.AttachWarn("rejected %s before upload: %v", f.Name, err)
		return nil, err
	}

	m.mu.Lock()
	m.uploading++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.uploading--
		m.mu.Unlock()
	}()

	att, err := m.uploader.UploadAttachment(ctx, f.Name, f.ContentType, f.Data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.pending = append(m.pending, *att)
	startPreview := strings.HasPrefix(att.ContentType, "image/") && !m.previewInFlight[att.ID]
	if startPreview {
		m.previewInFlight[att.ID] = true
		m.previewWG.Add(1)
	}
	m.mu.Unlock()

	if startPreview {
		go m.renderPreview(att.ID, att.ContentType, f.Data)
	}

	return att, nil
}

// UploadBatch uploads files from a multi-file selection or multi-item paste.
// Uploads run concurrently and may complete out of order; each file reports
// its own outcome.
func (m *Manager) UploadBatch(ctx context.Context, files []File) []UploadResult {
	results := make([]UploadResult, len(files))
	var g errgroup.Group
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			att, err := m.Upload(ctx, f)
			results[i] = UploadResult{Name: f.Name, Attachment: att, Err: err}
			return nil // sibling uploads are independent
		})
	}
	_ = g.Wait()
	return results
}

// Remove optimistically detaches the attachment locally, then requests
// server-side deletion best-effort. A server failure is logged and
// swallowed; the attachment is already out of any future query.
func (m *Manager) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	kept := m.pending[:0]
	for _, a := range m.pending {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	m.pending = kept
	m.mu.Unlock()

	go func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := m.uploader.DeleteAttachment(dctx, id); err != nil {
			logging.AttachWarn("server-side delete of %s failed: %v", id, err)
		}
	}()
}

// ConsumeAll clears the pending list after a successful submission consumed
// the attachments server-side.
func (m *Manager) ConsumeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}

// ReleaseAll detaches everything and fires best-effort server-side deletes.
// Used on session teardown; failures never block the UI.
func (m *Manager) ReleaseAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, len(m.pending))
	for i, a := range m.pending {
		ids[i] = a.ID
	}
	m.pending = nil
	m.mu.Unlock()

	for _, id := range ids {
		id := id
		go func() {
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := m.uploader.DeleteAttachment(dctx, id); err != nil {
				logging.AttachWarn("teardown delete of %s failed: %v", id, err)
			}
		}()
	}
}

// List returns a copy of the pending attachments.
func (m *Manager) List() []core.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Attachment, len(m.pending))
	copy(out, m.pending)
	return out
}

// UploadsPending reports whether any upload has not resolved yet. The query
// cannot be submitted while this is true.
func (m *Manager) UploadsPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploading > 0
}

// FilterPaste intercepts only image/* clipboard items; all other paste
// content is left to the host text field.
func (m *Manager) FilterPaste(items []ClipboardItem) []File {
	var files []File
	for i, item := range items {
		if !strings.HasPrefix(item.MIMEType, "image/") {
			continue
		}
		name := item.Filename
		if name == "" {
			name = fmt.Sprintf("pasted-image-%d.%s", i+1, extensionFor(item.MIMEType))
		}
		files = append(files, File{Name: name, ContentType: item.MIMEType, Data: item.Data})
	}
	return files
}

// WaitForPreviews blocks until all in-flight preview renders settle.
func (m *Manager) WaitForPreviews() {
	m.previewWG.Wait()
}

// renderPreview builds a local data-URI preview for an image attachment.
// At most one preview generation runs per attachment.
func (m *Manager) renderPreview(id, contentType string, data []byte) {
	defer m.previewWG.Done()

	uri := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.previewInFlight, id)
	for i := range m.pending {
		if m.pending[i].ID == id {
			m.pending[i].PreviewDataURI = uri
			logging.AttachDebug("preview rendered for %s", id)
			return
		}
	}
	// Attachment was removed while the preview rendered; drop it.
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	return "bin"
}
