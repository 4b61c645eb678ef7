package host

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const dirtyPrefix = "[edit]"

// Document is the host's copy of the markdown file. Edits are held in
// memory until Save writes them.
type Document struct {
	path    string
	content string
	saved   string
	modTime time.Time
}

func OpenDocument(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	d := &Document{path: abs}
	if _, err := d.read(); err != nil {
		return nil, err
	}
	d.content = d.saved
	return d, nil
}

func (d *Document) read() (string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if info, err := os.Stat(d.path); err == nil {
		d.modTime = info.ModTime()
	}
	d.saved = string(data)
	return d.saved, nil
}

func (d *Document) Path() string {
	return d.path
}

func (d *Document) Content() string {
	return d.content
}

func (d *Document) ModTime() time.Time {
	return d.modTime
}

func (d *Document) Dirty() bool {
	return d.content != d.saved
}

// Title is the file name, prefixed while there are unsaved edits.
func (d *Document) Title() string {
	name := filepath.Base(d.path)
	if d.Dirty() {
		return dirtyPrefix + name
	}
	return name
}

// Apply replaces the whole content and reports whether anything changed.
func (d *Document) Apply(content string) bool {
	if content == d.content {
		return false
	}
	d.content = content
	return true
}

// Save writes the content through a temp file in the same directory.
func (d *Document) Save() error {
	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.WriteString(d.content); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("failed to save document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	if info, err := os.Stat(d.path); err == nil {
		os.Chmod(tmp.Name(), info.Mode().Perm()) //nolint:errcheck
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	d.saved = d.content
	if info, err := os.Stat(d.path); err == nil {
		d.modTime = info.ModTime()
	}
	return nil
}

// Reload picks up a change made on disk by another program. Unsaved edits
// win over the disk copy. It reports whether the content changed.
func (d *Document) Reload() (bool, error) {
	dirty := d.Dirty()
	prev := d.saved
	disk, err := d.read()
	if err != nil {
		return false, err
	}
	if disk == prev || dirty {
		return false, nil
	}
	d.content = disk
	return true, nil
}
