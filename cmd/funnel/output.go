package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pbaille/funnel/internal/domain"
)

func printResources(w io.Writer, resources []domain.Resource) {
	for _, r := range resources {
		fmt.Fprintf(w, "%s  %s %3d%%  %-60s %s\n",
			r.ID[:8], checkbox(r.IsCompleted), r.Progress, truncate(r.Title, 60), strings.Join(r.Categories, ","))
	}
}

func printResource(w io.Writer, r *domain.Resource) {
	fmt.Fprintf(w, "ID:        %s\n", r.ID)
	fmt.Fprintf(w, "Created:   %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Title:     %s\n", r.Title)
	fmt.Fprintf(w, "URL:       %s\n", r.URL)
	fmt.Fprintf(w, "Progress:  %d%%\n", r.Progress)
	fmt.Fprintf(w, "Completed: %t\n", r.IsCompleted)
	if r.Notes != "" {
		fmt.Fprintf(w, "Notes:\n%s\n", r.Notes)
	}
	printCategories(w, r.Categories)
}

func printCategories(w io.Writer, categories []string) {
	if len(categories) == 0 {
		fmt.Fprintln(w, "Categories: (none)")
		return
	}
	fmt.Fprintf(w, "Categories: %s\n", strings.Join(categories, ", "))
}

// renderRoadmap writes nodes as text, json or yaml
func renderRoadmap(w io.Writer, nodes []domain.RoadmapNode, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(nodes); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q: use text, json or yaml", format)
	}

	if len(nodes) == 0 {
		fmt.Fprintln(w, "No roadmap yet. Add resources with 'funnel add'.")
		return nil
	}

	for i, n := range nodes {
		status := " "
		switch {
		case n.IsCompleted:
			status = "✓"
		case n.Locked:
			status = "🔒"
		}
		fmt.Fprintf(w, "%d. %s %s [%s] %d%%\n", i+1, status, n.Title, n.Difficulty, n.Progress)
		for _, r := range n.Resources {
			fmt.Fprintf(w, "     %s %s  %s\n", checkbox(r.IsCompleted), r.ID[:8], truncate(r.Title, 60))
		}
	}
	return nil
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
