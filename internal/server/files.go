package server

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/starford/ter/internal/apperr"
	"github.com/starford/ter/internal/logfields"
)

const (
	indexFile   = "index.html"
	notFoundDir = "404"
	notFoundMsg = "404 Not Found"
)

// serveFile streams <root>/P, or <root>/P/index.html when P is a directory.
// Any resolution failure falls back to the custom 404 page.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.open(r.URL.Path)
	if err != nil {
		s.logger.Debug("server: resolve failed", logfields.Path(r.URL.Path), logfields.Error(err))
		s.notFound(w, r)
		return
	}
	defer f.Close()
	s.stream(w, r, http.StatusOK, f, info)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.open(path.Join("/", notFoundDir, indexFile))
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, notFoundMsg)
		return
	}
	defer f.Close()
	s.stream(w, r, http.StatusNotFound, f, info)
}

// open resolves urlPath inside the output root. The cleaned path can never
// climb above the root.
func (s *Server) open(urlPath string) (*os.File, os.FileInfo, error) {
	name := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+urlPath)))

	f, info, err := openFile(name)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return f, info, nil
	}
	f.Close()

	f, info, err = openFile(filepath.Join(name, indexFile))
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("open %s: %w", name, apperr.ErrNotRegularFile)
	}
	return f, info, nil
}

func openFile(name string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("open %s: %w", name, apperr.ErrNotFound)
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// stream copies f to w without buffering it in memory.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, status int, f *os.File, info os.FileInfo) {
	if ct := mime.TypeByExtension(filepath.Ext(info.Name())); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Debug("server: stream interrupted", logfields.Path(r.URL.Path), logfields.Error(err))
	}
}
