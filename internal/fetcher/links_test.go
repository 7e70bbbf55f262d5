package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLinks(t *testing.T) {
	in := `# Reading list

- https://go.dev/doc/effective_go
- [Tour](https://go.dev/tour)
- Some text with https://example.com/article inline
- Invalid URL: not-a-url
- ftp://example.com/file
- https://go.dev/doc/effective_go (duplicate)

https://example.com/a https://example.com/b
`

	links, err := ReadLinks(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://go.dev/doc/effective_go",
		"https://go.dev/tour",
		"https://example.com/article",
		"https://example.com/a",
		"https://example.com/b",
	}, links)
}

func TestReadLinksEmpty(t *testing.T) {
	links, err := ReadLinks(strings.NewReader("nothing here\n"))
	require.NoError(t, err)
	assert.Empty(t, links)
}
