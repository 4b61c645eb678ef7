package editor

import (
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mgomes/mdedit/internal/protocol"
)

var unsafeNameChars = regexp.MustCompile(`[^\w\-.]+`)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".svg":  true,
	".ico":  true,
	".avif": true,
}

// UploadName prefixes name with a timestamp and replaces characters that
// are unsafe in file names.
func UploadName(now time.Time, name string) string {
	return unsafeNameChars.ReplaceAllString(now.Format("20060102_150405")+"_"+name, "_")
}

// ReadUpload loads a local file into an upload entry.
func ReadUpload(now time.Time, file string) (protocol.UploadFile, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return protocol.UploadFile{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return protocol.UploadFile{
		Base64: base64.StdEncoding.EncodeToString(data),
		Name:   UploadName(now, filepath.Base(file)),
	}, nil
}

// InsertMarkup returns the markdown inserted for an uploaded file.
func InsertMarkup(fileURL string) string {
	switch ext := strings.ToLower(path.Ext(fileURL)); {
	case ext == ".wav":
		return fmt.Sprintf("\n\n<audio controls=\"controls\" src=\"%s\"></audio>\n\n", fileURL)
	case imageExtensions[ext]:
		return fmt.Sprintf("\n\n![](%s)\n\n", fileURL)
	default:
		return fmt.Sprintf("\n\n[%s](%s)\n\n", path.Base(fileURL), fileURL)
	}
}
