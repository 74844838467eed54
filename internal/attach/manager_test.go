package attach

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"crawldesk/internal/core"
)

// fakeUploader counts calls and can fail specific filenames.
type fakeUploader struct {
	mu        sync.Mutex
	uploads   int
	deletes   []string
	failFiles map[string]bool
	nextID    int
}

func (f *fakeUploader) UploadAttachment(ctx context.Context, filename, contentType string, data []byte) (*core.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.failFiles[filename] {
		return nil, errors.New("upload rejected")
	}
	f.nextID++
	return &core.Attachment{
		ID:          fmt.Sprintf("att-%d", f.nextID),
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	}, nil
}

func (f *fakeUploader) DeleteAttachment(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeUploader) uploadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func (f *fakeUploader) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func TestValidationRejectsBeforeNetwork(t *testing.T) {
	up := &fakeUploader{}
	m := NewManager(up)

	cases := []struct {
		name string
		file File
		want error
	}{
		{"executable", File{Name: "run.exe", ContentType: "application/octet-stream", Data: []byte("x")}, core.ErrInvalidAttachmentType},
		{"svg", File{Name: "pic.svg", ContentType: "image/svg+xml", Data: []byte("x")}, core.ErrInvalidAttachmentType},
		{"oversized", File{Name: "big.png", ContentType: "image/png", Data: make([]byte, MaxAttachmentBytes+1)}, core.ErrAttachmentTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Upload(context.Background(), tc.file)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Upload = %v, want %v", err, tc.want)
			}
		})
	}

	if got := up.uploadCalls(); got != 0 {
		t.Errorf("rejected files caused %d network calls, want 0", got)
	}
	if got := len(m.List()); got != 0 {
		t.Errorf("rejected files entered the pending list: %d", got)
	}
}

func TestUploadAddsToPendingList(t *testing.T) {
	up := &fakeUploader{}
	m := NewManager(up)

	att, err := m.Upload(context.Background(), File{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("pdf")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if att.ID == "" {
		t.Fatal("expected backend-assigned id")
	}

	atts := m.List()
	if len(atts) != 1 || atts[0].Filename != "doc.pdf" {
		t.Fatalf("pending list = %+v", atts)
	}
	if m.UploadsPending() {
		t.Error("no upload should be pending after Upload returns")
	}
}

func TestImagePreviewRendersAsync(t *testing.T) {
	up := &fakeUploader{}
	m := NewManager(up)

	data := bytes.Repeat([]byte{0x89}, 32)
	if _, err := m.Upload(context.Background(), File{Name: "shot.png", ContentType: "image/png", Data: data}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	m.WaitForPreviews()

	atts := m.List()
	if len(atts) != 1 {
		t.Fatalf("pending list = %+v", atts)
	}
	if !strings.HasPrefix(atts[0].PreviewDataURI, "data:image/png;base64,") {
		t.Errorf("preview URI = %q", atts[0].PreviewDataURI)
	}
}

func TestPDFGetsNoPreview(t *testing.T) {
	m := NewManager(&fakeUploader{})
	if _, err := m.Upload(context.Background(), File{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("pdf")}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	m.WaitForPreviews()
	if uri := m.List()[0].PreviewDataURI; uri != "" {
		t.Errorf("pdf got a preview URI: %q", uri)
	}
}

func TestBatchUploadsAreIndependent(t *testing.T) {
	up := &fakeUploader{failFiles: map[string]bool{"bad.png": true}}
	m := NewManager(up)

	results := m.UploadBatch(context.Background(), []File{
		{Name: "good.png", ContentType: "image/png", Data: []byte("a")},
		{Name: "bad.png", ContentType: "image/png", Data: []byte("b")},
		{Name: "also-good.pdf", ContentType: "application/pdf", Data: []byte("c")},
	})

	var failed, ok int
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	if failed != 1 || ok != 2 {
		t.Fatalf("failed=%d ok=%d, want 1/2", failed, ok)
	}
	if got := len(m.List()); got != 2 {
		t.Errorf("pending list has %d entries, want the 2 successful uploads", got)
	}
	m.WaitForPreviews()
}

func TestRemoveIsOptimistic(t *testing.T) {
	up := &fakeUploader{}
	m := NewManager(up)

	att, err := m.Upload(context.Background(), File{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("pdf")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	m.Remove(context.Background(), att.ID)
	if got := len(m.List()); got != 0 {
		t.Fatalf("attachment still pending after Remove: %d", got)
	}

	waitFor(t, func() bool {
		ids := up.deletedIDs()
		return len(ids) == 1 && ids[0] == att.ID
	})
}

func TestReleaseAllDetachesEverything(t *testing.T) {
	up := &fakeUploader{}
	m := NewManager(up)

	for i := 0; i < 3; i++ {
		if _, err := m.Upload(context.Background(), File{
			Name: fmt.Sprintf("doc-%d.pdf", i), ContentType: "application/pdf", Data: []byte("pdf"),
		}); err != nil {
			t.Fatalf("Upload: %v", err)
		}
	}

	m.ReleaseAll(context.Background())
	if got := len(m.List()); got != 0 {
		t.Fatalf("pending list not cleared: %d", got)
	}
	waitFor(t, func() bool { return len(up.deletedIDs()) == 3 })
}

func TestConsumeAllClearsWithoutDeletes(t *testing.T) {
	up := &fakeUploader{}
	m := NewManager(up)
	if _, err := m.Upload(context.Background(), File{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("pdf")}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	m.ConsumeAll()
	if got := len(m.List()); got != 0 {
		t.Fatalf("pending list not cleared: %d", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := up.deletedIDs(); len(got) != 0 {
		t.Errorf("consumed attachments must not be deleted server-side, got %v", got)
	}
}

func TestFilterPasteInterceptsOnlyImages(t *testing.T) {
	m := NewManager(&fakeUploader{})

	files := m.FilterPaste([]ClipboardItem{
		{MIMEType: "text/plain", Data: []byte("hello")},
		{MIMEType: "image/png", Data: []byte{1, 2, 3}},
		{MIMEType: "image/jpeg", Filename: "photo.jpg", Data: []byte{4, 5}},
		{MIMEType: "application/pdf", Data: []byte("pdf")},
	})

	if len(files) != 2 {
		t.Fatalf("intercepted %d items, want only the 2 images", len(files))
	}
	if files[0].ContentType != "image/png" || files[1].Name != "photo.jpg" {
		t.Errorf("unexpected files: %+v", files)
	}
	if files[0].Name == "" {
		t.Error("unnamed pasted image should get a synthetic filename")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
