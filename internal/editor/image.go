package editor

import (
	"fmt"
	"html"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	markdownImage = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	htmlImage     = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	imageAttr     = regexp.MustCompile(`(?i)\b(src|alt)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))`)
)

// image is one image reference on a line, in byte offsets.
type image struct {
	start, end int
	src, alt   string
}

func lineImages(line string) []image {
	var out []image
	for _, m := range markdownImage.FindAllStringSubmatchIndex(line, -1) {
		out = append(out, image{start: m[0], end: m[1], alt: line[m[2]:m[3]], src: line[m[4]:m[5]]})
	}
	for _, m := range htmlImage.FindAllStringIndex(line, -1) {
		img := image{start: m[0], end: m[1]}
		for _, a := range imageAttr.FindAllStringSubmatch(line[m[0]:m[1]], -1) {
			v := html.UnescapeString(a[2] + a[3] + a[4])
			if strings.EqualFold(a[1], "src") {
				img.src = v
			} else {
				img.alt = v
			}
		}
		if img.src != "" {
			out = append(out, img)
		}
	}
	slices.SortFunc(out, func(a, b image) int { return a.start - b.start })
	return out
}

// SetImageSize rewrites the image under the cursor, or the first image on
// the cursor line, as an <img> tag with the given size. height is left out
// when zero. It returns the new text and cursor, and false when the line
// holds no image.
func SetImageSize(text string, cursor, width, height int) (string, int, bool) {
	if width <= 0 || height < 0 {
		return text, cursor, false
	}
	lines := strings.Split(text, "\n")
	li, col := cursorLine(lines, cursor)
	line := lines[li]

	images := lineImages(line)
	if len(images) == 0 {
		return text, cursor, false
	}
	at := len(string([]rune(line)[:col]))
	img := images[0]
	for _, c := range images {
		if c.start <= at && at <= c.end {
			img = c
			break
		}
	}

	tag := fmt.Sprintf(`<img src="%s" alt="%s" width="%d"`, html.EscapeString(img.src), html.EscapeString(img.alt), width)
	if height > 0 {
		tag += fmt.Sprintf(` height="%d"`, height)
	}
	tag += ">"

	lines[li] = line[:img.start] + tag + line[img.end:]
	pos := cursor - col + utf8.RuneCountInString(line[:img.start])
	return strings.Join(lines, "\n"), pos, true
}
