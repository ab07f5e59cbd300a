// Package frontend serves a built single-page UI from disk.
package frontend

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const indexFile = "index.html"

// Handler serves static files mounted at prefix. Paths that do not name a
// file fall back to index.html so client-side routes work.
type Handler struct {
	root       string
	prefix     string
	fileServer http.Handler
	notFound   http.Handler
}

// NewHandler creates a handler for the build in root. prefix is the mount
// point without a trailing slash (e.g. "/ui"); notFound answers when there
// is not even an index.html to fall back to.
func NewHandler(root, prefix string, notFound http.Handler) *Handler {
	if notFound == nil {
		notFound = http.NotFoundHandler()
	}
	return &Handler{
		root:       root,
		prefix:     prefix,
		fileServer: http.StripPrefix(prefix, http.FileServer(http.Dir(root))),
		notFound:   notFound,
	}
}

// ServeHTTP serves files with SPA fallback to index.html.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == h.prefix {
		target := h.prefix + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		return
	}

	rel := path.Clean("/" + strings.TrimPrefix(r.URL.Path, h.prefix))
	if h.exists(rel) {
		h.fileServer.ServeHTTP(w, r)
		return
	}
	h.serveIndex(w, r)
}

// exists reports whether rel names a file, or a directory holding an index.
func (h *Handler) exists(rel string) bool {
	full := filepath.Join(h.root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return true
	}
	_, err = os.Stat(filepath.Join(full, indexFile))
	return err == nil
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(filepath.Join(h.root, indexFile))
	if err != nil {
		h.notFound.ServeHTTP(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		h.notFound.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, indexFile, info.ModTime(), f)
}

// Missing answers every UI path when the build directory is absent.
func Missing(dir string) http.Handler {
	msg := fmt.Sprintf("UI build not found at FRONTEND_DIR=%s. "+
		"Run your UI build (e.g., `npm run build`) and point FRONTEND_DIR to the built folder.", dir)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, msg)
	})
}

// Available reports whether dir exists and is a directory.
func Available(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
