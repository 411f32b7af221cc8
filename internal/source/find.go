package source

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// TemplateExtensions are tried, in order, for a template reference that
// carries no extension of its own.
var TemplateExtensions = []string{
	".html.jinja2",
	".jinja2",
	".html.j2",
	".j2",
	".html.tmpl",
	".tmpl",
	".gohtml",
	".html",
}

// IconExtensions are tried, in order, when looking up an icon by bare name.
var IconExtensions = []string{".svg", ".png", ".gif", ".bmp", ".webp", ".jpeg", ".jpg"}

// Find returns base unchanged when it already has an extension; existence is
// then the caller's concern. Otherwise it returns the first base+ext that is
// a regular file, or false when none is.
func Find(base string, exts ...string) (string, bool) {
	if filepath.Ext(base) != "" {
		return base, true
	}
	for _, ext := range exts {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// FindIcon looks up name under root/dir and returns its slash-separated path
// relative to root with a leading "/", suitable for use as a URL.
func FindIcon(root, dir, name string) (string, bool) {
	if name == "" || strings.Contains(name, "..") {
		return "", false
	}
	p, ok := Find(filepath.Join(root, dir, name), IconExtensions...)
	if !ok {
		return "", false
	}
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", false
	}
	return path.Join("/", filepath.ToSlash(rel)), true
}
