package models

import (
	"io"
	"time"
)

// ContentTypePDF is the only content type accepted for payroll documents.
const ContentTypePDF = "application/pdf"

// Payroll is the metadata row of one stored payroll document. ObjectKey names
// the blob in object storage; FileSize is its exact length in bytes.
type Payroll struct {
	ID          int64
	Period      string
	UserID      int64
	ObjectKey   string
	Filename    string
	ContentType string
	FileSize    int64
	UploadedAt  time.Time
}

// CreatePayrollInput is the JSON part of an upload request.
type CreatePayrollInput struct {
	Period string `json:"date" validate:"required,period"`
	UserID int64  `json:"user_id" validate:"gt=0"`
}

// UploadedFile is a received upload spooled to a local temporary file.
type UploadedFile struct {
	Path         string
	OriginalName string
	Size         int64
}

type PayrollView struct {
	ID       int64  `json:"id"`
	Period   string `json:"date"`
	UserID   int64  `json:"user_id"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
}

func (p *Payroll) View() PayrollView {
	return PayrollView{
		ID:       p.ID,
		Period:   p.Period,
		UserID:   p.UserID,
		Filename: p.Filename,
		FileSize: p.FileSize,
	}
}

// PayrollFilter narrows a payroll listing. Nil fields are not applied.
type PayrollFilter struct {
	UserID *int64  `json:"user_id" validate:"omitempty,gt=0"`
	Period *string `json:"date" validate:"omitempty,period"`
}

// PayrollDownload is an open, single-pass document stream. The caller must
// close Body.
type PayrollDownload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}
