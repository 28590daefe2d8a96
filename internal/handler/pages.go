package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var pageAliases = map[string]string{
	"/":     "index.html",
	"/auth": "auth.html",
}

// ServePage отдаёт статические страницы из публичного каталога. Для отсутствующих файлов
// возвращается 404.html.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}
	if h.publicDir == "" {
		writeError(w, http.StatusNotFound, "route not found")
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	name, ok := pageAliases[clean]
	if !ok {
		name = strings.TrimPrefix(clean, "/")
	}

	full := filepath.Join(h.publicDir, filepath.FromSlash(name))
	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		http.ServeFile(w, r, full)
		return
	}

	notFound := filepath.Join(h.publicDir, "404.html")
	body, err := os.ReadFile(notFound)
	if err != nil {
		writeError(w, http.StatusNotFound, "route not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(body)
}
