package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/funnel/internal/domain"
)

const page = `<!doctype html>
<html>
<head>
  <title>  Learn   Go  </title>
  <meta name="description" content="A tour of the Go programming language">
  <meta property="og:title" content="Go Tour (og)">
</head>
<body><h1>Welcome</h1><script>var x = 1;</script><p>Hello <b>gophers</b></p></body>
</html>`

func newFetcher() *Fetcher {
	return New(2*time.Second, "funnel-test", nil)
}

func TestMetadata(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	md := newFetcher().Metadata(context.Background(), srv.URL)
	assert.Equal(t, domain.Metadata{Title: "Learn Go", Description: "A tour of the Go programming language"}, md)
	assert.Equal(t, "funnel-test", gotUA)
}

func TestMetadataFallbacks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want domain.Metadata
	}{
		{
			name: "og tags",
			html: `<html><head><meta property="og:title" content="OG title"><meta property="og:description" content="OG desc"></head></html>`,
			want: domain.Metadata{Title: "OG title", Description: "OG desc"},
		},
		{
			name: "h1 title",
			html: `<html><body><h1>Heading</h1></body></html>`,
			want: domain.Metadata{Title: "Heading"},
		},
		{
			name: "description attribute order",
			html: `<html><head><title>T</title><meta content="reversed" name="description"></head></html>`,
			want: domain.Metadata{Title: "T", Description: "reversed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := ParseMetadata(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, md)
		})
	}
}

func TestMetadataNeverFails(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer empty.Close()

	f := New(200*time.Millisecond, "funnel-test", nil)
	ctx := context.Background()

	for _, u := range []string{notFound.URL, slow.URL, "ftp://example.com/file", "::bad::"} {
		assert.Equal(t, domain.Metadata{Title: u}, f.Metadata(ctx, u), u)
	}
	assert.Equal(t, domain.Metadata{Title: empty.URL}, f.Metadata(ctx, empty.URL))
}

func TestMetadataStopsRedirectLoops(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	defer srv.Close()

	md := newFetcher().Metadata(context.Background(), srv.URL)
	assert.Equal(t, domain.Metadata{Title: srv.URL}, md)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://go.dev"))
	assert.True(t, IsURL(" http://go.dev"))
	assert.True(t, IsURL("www.go.dev"))
	assert.False(t, IsURL("go.dev"))
	assert.False(t, IsURL("notes.md"))
}

func TestNormalize(t *testing.T) {
	u, err := Normalize("www.go.dev")
	require.NoError(t, err)
	assert.Equal(t, "https://www.go.dev", u)

	u, err = Normalize(" https://go.dev/doc ")
	require.NoError(t, err)
	assert.Equal(t, "https://go.dev/doc", u)

	_, err = Normalize("go.dev")
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	assert.Equal(t, "Welcome Hello gophers", ExtractText(page))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "golang notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("  goroutines and channels \n"), 0644))
	f, err := ReadFile(txt)
	require.NoError(t, err)
	assert.Equal(t, "golang notes", f.Title)
	assert.Equal(t, "goroutines and channels", f.Notes)
	assert.True(t, strings.HasPrefix(f.URL, "file://"))
	assert.True(t, domain.ValidURL(f.URL))

	htmlFile := filepath.Join(dir, "saved.html")
	require.NoError(t, os.WriteFile(htmlFile, []byte(page), 0644))
	f, err = ReadFile(htmlFile)
	require.NoError(t, err)
	assert.Equal(t, "saved", f.Title)
	assert.Equal(t, "Welcome Hello gophers", f.Notes)

	long := filepath.Join(dir, "long.md")
	require.NoError(t, os.WriteFile(long, []byte(strings.Repeat("ü", domain.MaxNotesLength+50)), 0644))
	f, err = ReadFile(long)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxNotesLength, len([]rune(f.Notes)))

	pdf := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0644))
	_, err = ReadFile(pdf)
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = ReadFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
