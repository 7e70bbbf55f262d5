package fetcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/pbaille/funnel/internal/domain"
)

const maxFileSize = 10 * 1024 * 1024

// ErrUnsupportedFile is returned for files other than text, markdown or HTML
var ErrUnsupportedFile = errors.New("unsupported file type: use .txt, .md or .html files")

// File is the content extracted from a local file for the add flow
type File struct {
	Title string
	Notes string
	URL   string
}

// ReadFile extracts a title and notes from a local file. The title is the
// file name without its extension; notes are the leading text of the file,
// capped at domain.MaxNotesLength characters.
func ReadFile(path string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md", ".markdown", ".html", ".htm":
	default:
		return nil, ErrUnsupportedFile
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("file size exceeds %dMB limit", maxFileSize/(1024*1024))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	text := string(data)
	if ext == ".html" || ext == ".htm" {
		text = ExtractText(text)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	return &File{
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Notes: truncateRunes(strings.TrimSpace(text), domain.MaxNotesLength),
		URL:   "file://" + filepath.ToSlash(abs),
	}, nil
}

// ExtractText parses HTML and returns readable text content
func ExtractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var extract func(*html.Node)

	// Tags to skip (non-content)
	skipTags := map[string]bool{
		"script": true, "style": true, "nav": true,
		"header": true, "footer": true, "aside": true,
		"noscript": true, "iframe": true, "head": true,
	}

	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
