package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/spf13/afero"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/validation"
)

const (
	bodyPartName = "body"
	filePartName = "file"

	// bounds the JSON part and multipart framing on top of the file itself
	maxMetadataSize = 64 << 10
)

// createPayroll reads a multipart request whose first part is the JSON
// "body" and whose second part is the "file". The file is streamed to a
// temporary file which the service removes once ingestion ends.
func (s *Server) createPayroll(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		s.writeError(w, r, apperr.UnsupportedMediaType("Expected multipart/form-data"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.upload.MaxFileSize+maxMetadataSize)
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, apperr.BadRequest("Invalid multipart request"))
		return
	}

	part, err := mr.NextPart()
	if err != nil || part.FormName() != bodyPartName {
		s.writeError(w, r, apperr.BadRequest("The first part must be $1", bodyPartName))
		return
	}
	var in models.CreatePayrollInput
	if err := json.NewDecoder(io.LimitReader(part, maxMetadataSize)).Decode(&in); err != nil {
		s.writeError(w, r, apperr.BadRequest("Invalid request body"))
		return
	}

	part, err = mr.NextPart()
	if err != nil || part.FormName() != filePartName {
		s.writeError(w, r, apperr.BadRequest("The second part must be $1", filePartName))
		return
	}

	file, err := s.spool(part, part.FileName())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pv, err := s.svc.Payrolls.CreatePayroll(r.Context(), actor(r), in, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pv)
}

// spool copies src into a new temporary file, rejecting content larger
// than the configured maximum. On error no file is left behind.
func (s *Server) spool(src io.Reader, name string) (models.UploadedFile, error) {
	if name == "" {
		return models.UploadedFile{}, apperr.BadRequest("Missing file name")
	}

	f, err := afero.TempFile(s.upload.FS, s.upload.TempDir, "payroll-*")
	if err != nil {
		return models.UploadedFile{}, apperr.Internal("create temp file", err)
	}
	path := f.Name()

	n, err := io.Copy(f, io.LimitReader(src, s.upload.MaxFileSize+1))
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil && n > s.upload.MaxFileSize {
		err = validation.SizeLimitError(s.upload.MaxFileSize)
	}
	if err != nil {
		_ = s.upload.FS.Remove(path)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.UploadedFile{}, validation.SizeLimitError(s.upload.MaxFileSize)
		}
		if apperr.KindOf(err) == apperr.KindBadRequest {
			return models.UploadedFile{}, err
		}
		return models.UploadedFile{}, apperr.Internal("spool upload", err)
	}

	return models.UploadedFile{Path: path, OriginalName: name, Size: n}, nil
}

func (s *Server) downloadPayroll(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	dl, err := s.svc.Payrolls.DownloadPayroll(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer dl.Body.Close()

	h := w.Header()
	h.Set("Content-Type", dl.ContentType)
	h.Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, dl.Body)
	if err != nil {
		// headers are gone; the client sees a short body
		s.logger.Warn(r.Context(), "download interrupted", "payroll_id", id, "written", n, "error", err)
	}
}
