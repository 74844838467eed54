package core

import "errors"

var (
	// ErrModeLocked is returned by SetMode while a preview envelope is
	// outstanding or a commit is in flight.
	ErrModeLocked = errors.New("mode is locked while a preview or commit is pending")

	// ErrInvalidMode is returned by SetMode for a value outside
	// {read, write, plan}.
	ErrInvalidMode = errors.New("unknown interaction mode")

	// ErrBusy is returned by Submit while a prior submission, preview, or
	// commit is still in flight.
	ErrBusy = errors.New("an operation is already in flight")

	// ErrPreviewOutstanding is returned when a second preview is requested
	// without cancelling or confirming the first.
	ErrPreviewOutstanding = errors.New("a preview is already outstanding")

	// ErrNoPreview is returned by Confirm or CancelPreview outside the
	// previewing phase.
	ErrNoPreview = errors.New("no preview outstanding")

	// ErrUploadsPending is returned by Submit while an attachment upload has
	// not resolved yet.
	ErrUploadsPending = errors.New("attachment upload still in progress")

	// ErrInvalidAttachmentType rejects uploads outside the content-type
	// allow-list before any network call.
	ErrInvalidAttachmentType = errors.New("attachment content type not allowed")

	// ErrAttachmentTooLarge rejects uploads over the size cap before any
	// network call.
	ErrAttachmentTooLarge = errors.New("attachment exceeds maximum size")

	// ErrEmptyQuery rejects submission of an empty query text with no
	// attachments.
	ErrEmptyQuery = errors.New("query text is empty")
)
