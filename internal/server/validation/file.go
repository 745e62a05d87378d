package validation

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

// MaxNameLength bounds filenames and object keys.
const MaxNameLength = 255

// CheckUpload validates a spooled upload: the name, the declared and the
// on-disk size, and the PDF structure of the content.
func CheckUpload(fs afero.Fs, f models.UploadedFile, maxSize int64) error {
	if err := CheckFilename(f.OriginalName); err != nil {
		return err
	}
	if err := CheckSize(f.Size, maxSize); err != nil {
		return err
	}

	st, err := fs.Stat(f.Path)
	if err != nil {
		return apperr.Internal("stat upload", err)
	}
	if st.Size() != f.Size {
		return apperr.BadRequest("File size mismatch")
	}

	return CheckPDF(fs, f.Path)
}

// CheckFilename requires a .pdf name of at most MaxNameLength characters.
func CheckFilename(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return apperr.BadRequest("Filename must be between 1 and $1 characters long", strconv.Itoa(MaxNameLength))
	}
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, ".pdf") {
		return apperr.BadRequest("Invalid file type: $1", ext)
	}
	return nil
}

func CheckSize(size, maxSize int64) error {
	if size <= 0 {
		return apperr.BadRequest("File is empty")
	}
	if size > maxSize {
		return SizeLimitError(maxSize)
	}
	return nil
}

// SizeLimitError is the rejection for content larger than maxSize bytes.
func SizeLimitError(maxSize int64) error {
	return apperr.BadRequest("File size cannot exceed $1 bytes", strconv.FormatInt(maxSize, 10))
}

func CheckObjectKey(key string) error {
	if key == "" || len(key) > MaxNameLength {
		return apperr.BadRequest("Object key must be between 1 and $1 characters long", strconv.Itoa(MaxNameLength))
	}
	return nil
}

// CheckPDF requires the file at path to be a PDF document. The signature
// is sniffed first; the document is then loaded through its cross-reference
// table and must have at least one reachable page.
func CheckPDF(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return apperr.Internal("open upload", err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return apperr.Internal("detect content type", err)
	}
	if !mt.Is(models.ContentTypePDF) {
		return apperr.BadRequest("Invalid file type: $1", mt.String())
	}

	st, err := f.Stat()
	if err != nil {
		return apperr.Internal("stat upload", err)
	}
	return parsePDF(f, st.Size())
}

// parsePDF recovers because the parser panics on some malformed input.
func parsePDF(r io.ReaderAt, size int64) (err error) {
	invalid := apperr.BadRequest("Invalid PDF document")
	defer func() {
		if p := recover(); p != nil {
			err = invalid
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return invalid
	}
	if doc.NumPage() < 1 || doc.Page(1).V.IsNull() {
		return invalid
	}
	return nil
}
