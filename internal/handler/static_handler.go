package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

// StaticHandler serves the call form page and static assets
type StaticHandler struct {
	staticDir string
}

// NewStaticHandler creates a new static handler rooted at the given directory
func NewStaticHandler(staticDir string) *StaticHandler {
	return &StaticHandler{staticDir: staticDir}
}

// SetupStaticAssetsOnly registers the asset file server without page routes
func (sh *StaticHandler) SetupStaticAssetsOnly(router *mux.Router) {
	fileServer := http.FileServer(http.Dir(sh.staticDir))
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", fileServer))
}

// serveCallForm serves the call form page
func (sh *StaticHandler) serveCallForm(w http.ResponseWriter, r *http.Request) {
	sh.serveHTMLFile(w, "html/call_form.html")
}

func (sh *StaticHandler) serveHTMLFile(w http.ResponseWriter, relPath string) {
	fullPath := filepath.Join(sh.staticDir, relPath)

	content, err := os.ReadFile(fullPath)
	if err != nil {
		logger.Base().Error("failed to read static page",
			zap.String("path", fullPath),
			zap.Error(err),
		)
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
