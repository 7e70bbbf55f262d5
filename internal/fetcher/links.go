package fetcher

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"regexp"
)

var urlRegex = regexp.MustCompile(`https?://[^\s)\]>"']+`)

// ReadLinks returns the http(s) URLs found in r, one or more per line, in
// order of first appearance and without duplicates. Markdown list items and
// links are accepted.
func ReadLinks(r io.Reader) ([]string, error) {
	var (
		links []string
		seen  = map[string]bool{}
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, raw := range urlRegex.FindAllString(scanner.Text(), -1) {
			u, err := url.ParseRequestURI(raw)
			if err != nil || u.Host == "" {
				continue
			}
			if seen[raw] {
				continue
			}
			seen[raw] = true
			links = append(links, raw)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	return links, nil
}
