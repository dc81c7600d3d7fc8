package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"campusconnect/internal/domain"
)

const (
	maxUploadBytes  = 20 << 20
	maxUploadsPerIn = 10
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("multiple json values")
		}
		return err
	}
	return nil
}

// readUploads reads every file sent under field in a multipart form.
func readUploads(w http.ResponseWriter, r *http.Request, field string) ([]domain.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, domain.NewValidationError(map[string]string{field: "invalid multipart form"})
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, domain.NewValidationError(map[string]string{field: "required"})
	}
	if len(headers) > maxUploadsPerIn {
		return nil, domain.NewValidationError(map[string]string{field: fmt.Sprintf("at most %d files", maxUploadsPerIn)})
	}

	out := make([]domain.Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		contentType := h.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		out = append(out, domain.Upload{Name: h.Filename, ContentType: contentType, Data: data})
	}
	return out, nil
}
