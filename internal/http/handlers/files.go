package handlers

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"guru/internal/middleware"
	"guru/internal/payment"
)

// SlipFiles serves slips written by the filesystem blob store. The request
// path is the blob key. Directories are never listed.
func (a *App) SlipFiles(root string) http.Handler {
	files := http.FileServer(noDirFS{http.Dir(root)})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		ctx := r.Context()
		if middleware.RoleFromContext(ctx) != middleware.RoleOperator &&
			!strings.HasPrefix(key, payment.SlipPrefix(middleware.UserIDFromContext(ctx))) {
			a.error(w, http.StatusNotFound, "not_found", "file not found")
			return
		}
		w.Header().Set("Cache-Control", "private, no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}

type noDirFS struct{ http.FileSystem }

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
