package host

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var httpURL = regexp.MustCompile(`(?i)^https?://`)

func isHTTPURL(s string) bool {
	return httpURL.MatchString(s)
}

// ProjectRoot is the nearest ancestor of the document holding a .git entry,
// or the document's own directory.
func ProjectRoot(docPath string) string {
	dir := filepath.Dir(docPath)
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, ".git")); err == nil {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}

// AssetsFolder expands the image folder template for docPath and resolves
// it against the document's directory.
func AssetsFolder(template, docPath, projectRoot string) string {
	base := filepath.Base(docPath)
	folder := strings.NewReplacer(
		"${projectRoot}", projectRoot,
		"${file}", docPath,
		"${fileBasenameNoExtension}", strings.TrimSuffix(base, filepath.Ext(base)),
		"${dir}", filepath.Dir(docPath),
	).Replace(template)

	if filepath.IsAbs(folder) {
		return filepath.Clean(folder)
	}
	return filepath.Join(filepath.Dir(docPath), folder)
}

// RelativeAsset is the forward-slash path of file relative to the document.
func RelativeAsset(docPath, file string) string {
	rel, err := filepath.Rel(filepath.Dir(docPath), file)
	if err != nil {
		rel = file
	}
	return filepath.ToSlash(rel)
}

// ResolveLink turns an href from the document into something the platform
// opener understands. Anything not starting with "http" is a path relative
// to the document.
func ResolveLink(docPath, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if filepath.IsAbs(href) {
		return filepath.Clean(href)
	}
	return filepath.Join(filepath.Dir(docPath), filepath.FromSlash(href))
}

// ResolveCSS finds the file a configured stylesheet refers to. Relative
// paths are tried against the document first, then the project root.
func ResolveCSS(cssFile, docPath, projectRoot string) string {
	if filepath.IsAbs(cssFile) {
		return filepath.Clean(cssFile)
	}
	nextToDoc := filepath.Join(filepath.Dir(docPath), cssFile)
	if _, err := os.Stat(nextToDoc); err == nil {
		return nextToDoc
	}
	if projectRoot != "" {
		return filepath.Join(projectRoot, cssFile)
	}
	return nextToDoc
}

// localCSSFiles drops remote stylesheets, which are never watched.
func localCSSFiles(files []string) []string {
	var out []string
	for _, f := range files {
		if !isHTTPURL(f) {
			out = append(out, f)
		}
	}
	return out
}
