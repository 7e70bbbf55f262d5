package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pbaille/funnel/internal/domain"
	"github.com/pbaille/funnel/internal/logger"
)

const (
	maxBodySize  = 5 * 1024 * 1024
	maxRedirects = 5
)

// Fetcher retrieves page metadata for the add flow
type Fetcher struct {
	client    *http.Client
	userAgent string
	log       *logger.Logger
}

// New creates a Fetcher with the given request timeout and user agent
func New(timeout time.Duration, userAgent string, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		log:       log,
	}
}

// Metadata returns the title and description of the page at rawURL. It never
// fails: on any error the title falls back to the URL itself and the
// description is empty.
func (f *Fetcher) Metadata(ctx context.Context, rawURL string) domain.Metadata {
	md, err := f.fetchMetadata(ctx, rawURL)
	if err != nil {
		f.log.Warn("metadata fetch failed", "url", rawURL, "error", err)
		return domain.Metadata{Title: rawURL}
	}
	if md.Title == "" {
		md.Title = rawURL
	}
	return md
}

func (f *Fetcher) fetchMetadata(ctx context.Context, rawURL string) (domain.Metadata, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Metadata{}, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Metadata{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return ParseMetadata(io.LimitReader(resp.Body, maxBodySize))
}

// ParseMetadata extracts the title and description from an HTML document
func ParseMetadata(r io.Reader) (domain.Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("parse html: %w", err)
	}

	return domain.Metadata{
		Title:       firstNonEmpty(doc, titleSelectors),
		Description: firstNonEmpty(doc, descriptionSelectors),
	}, nil
}

type selector struct {
	query string
	attr  string
}

var (
	titleSelectors = []selector{
		{query: "head title"},
		{query: "meta[property='og:title']", attr: "content"},
		{query: "h1"},
	}
	descriptionSelectors = []selector{
		{query: "meta[name='description']", attr: "content"},
		{query: "meta[property='og:description']", attr: "content"},
	}
)

func firstNonEmpty(doc *goquery.Document, selectors []selector) string {
	for _, sel := range selectors {
		node := doc.Find(sel.query).First()
		var text string
		if sel.attr != "" {
			text, _ = node.Attr(sel.attr)
		} else {
			text = node.Text()
		}
		if text = strings.Join(strings.Fields(text), " "); text != "" {
			return text
		}
	}
	return ""
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

// Normalize turns a URL-looking string into an absolute URL, defaulting to https
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "www.") {
		s = "https://" + s
	}
	if !domain.ValidURL(s) {
		return "", errors.New("not a valid absolute URL")
	}
	return s, nil
}
