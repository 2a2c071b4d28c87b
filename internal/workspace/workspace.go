package workspace

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
	"golang.org/x/mod/modfile"
	"golang.org/x/text/cases"
)

// Workspace is the project root served to every client.
type Workspace struct {
	root    string
	rootURI uri.URI
}

func New(root string) *Workspace {
	return &Workspace{
		root:    root,
		rootURI: uri.File(root),
	}
}

func (w *Workspace) Root() string { return w.root }

// URI is the workspace URI currently in effect.
func (w *Workspace) URI() uri.URI { return w.rootURI }

// Matches reports whether path names this workspace's root, ignoring case.
func (w *Workspace) Matches(path string) bool {
	if path == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(normalize(path)) == fold.String(w.root)
}

// Reconcile adopts rootURI when the client's rootPath names this workspace.
// Otherwise the URI is reset to the server's own root and false is returned,
// telling the caller the client should be asked to change workspace.
func (w *Workspace) Reconcile(rootPath string, rootURI uri.URI) bool {
	if rootURI != "" && w.Matches(rootPath) {
		w.rootURI = rootURI
		return true
	}
	w.rootURI = uri.File(w.root)
	return false
}

// ModulePath returns the module path declared in the root's go.mod, if any.
func (w *Workspace) ModulePath() string {
	data, err := os.ReadFile(filepath.Join(w.root, "go.mod"))
	if err != nil {
		return ""
	}
	path := modfile.ModulePath(data)
	if path == "" {
		slog.Warn("go.mod without module directive", "root", w.root)
	}
	return path
}

func normalize(path string) string {
	if filepath.Separator == '\\' {
		return strings.ReplaceAll(path, "\\", "/")
	}
	return path
}
