package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/senechal-app/senechal/internal/server/middleware"
)

// DataHandler serves the simple file-backed test endpoints. They exist as
// minimal protected resources: /getTest is readable by the "read" role and
// /setTest writable only by roles granted that path.
type DataHandler struct {
	filePath string
}

// NewDataHandler creates a DataHandler writing to the given file path.
func NewDataHandler(dataDir string) *DataHandler {
	return &DataHandler{filePath: filepath.Join(dataDir, "test.txt")}
}

type setTestRequest struct {
	Content string `json:"content"`
}

// GetTest reads the test file.
// GET /getTest
func (h *DataHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	content, err := os.ReadFile(h.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusOK, map[string]string{"file_content": "File not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to read file: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file_content": string(content)})
}

// SetTest overwrites the test file. The authenticated role from the request
// context is recorded for audit; the authorization decision itself was made
// by the middleware.
// POST /setTest
func (h *DataHandler) SetTest(w http.ResponseWriter, r *http.Request) {
	var req setTestRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := os.WriteFile(h.filePath, []byte(req.Content), 0644); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to write file: "+err.Error())
		return
	}

	resp := map[string]string{"message": "File updated successfully"}
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		resp["role"] = p.Role
	}
	writeJSON(w, http.StatusOK, resp)
}
