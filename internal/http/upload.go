package httpx

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"log/slog"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// ImageStore is the storage surface the upload handler needs.
type ImageStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Remove(path string)
}

// UploadHandler stores uploaded post images.
type UploadHandler struct {
	store  ImageStore
	logger *slog.Logger
}

// NewUploadHandler constructs the /post-image handler backing.
func NewUploadHandler(store ImageStore, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{store: store, logger: logger}
}

func allowedImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// handlePostImage accepts a multipart image, stores it, and best-effort
// deletes the replaced file when oldPath is supplied.
func (r *Router) handlePostImage(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := req.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "no file provided"})
		return
	}
	defer file.Close()

	if !allowedImageName(header.Filename) {
		writeError(w, http.StatusUnprocessableEntity, "unsupported image type")
		return
	}
	filePath, err := r.images.store.Save(header.Filename, file)
	if err != nil {
		r.logger.Error("image store failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not store file")
		return
	}
	if oldPath := strings.TrimSpace(req.FormValue("oldPath")); oldPath != "" {
		r.images.store.Remove(oldPath)
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message":  "file stored",
		"filePath": filePath,
	})
}
