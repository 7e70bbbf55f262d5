// Package roadmap orders categorized resources into a gated learning path.
//
// Every build is recomputed from the resource list it is given: resources
// are grouped by their first category, each group becomes a node with a
// difficulty and completion state, incomplete nodes come first (easiest
// first), and a node is locked until every earlier node has at least one
// completed resource.
package roadmap

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pbaille/funnel/internal/domain"
)

// ErrNilResources is returned when Build is given no resource list at all
var ErrNilResources = errors.New("roadmap: nil resource list")

var (
	advancedIndicators = []string{"advanced", "expert", "complex", "architecture", "optimization"}
	beginnerIndicators = []string{"basic", "introduction", "getting started", "fundamentals", "101"}
)

// Build derives the roadmap for resources. The input is not modified.
func Build(resources []domain.Resource) ([]domain.RoadmapNode, error) {
	if resources == nil {
		return nil, ErrNilResources
	}

	topics, groups := groupByTopic(resources)

	nodes := make([]domain.RoadmapNode, 0, len(topics))
	for _, topic := range topics {
		nodes = append(nodes, newNode(topic, groups[topic]))
	}

	slices.SortStableFunc(nodes, compareNodes)
	applyLocks(nodes)

	return nodes, nil
}

// groupByTopic buckets resources by their first category. Topics are
// returned in first-seen order.
func groupByTopic(resources []domain.Resource) ([]string, map[string][]domain.Resource) {
	var topics []string
	groups := make(map[string][]domain.Resource)

	for _, r := range resources {
		if len(r.Categories) == 0 || r.Categories[0] == "" {
			continue
		}
		topic := r.Categories[0]
		if _, ok := groups[topic]; !ok {
			topics = append(topics, topic)
		}
		r.Categories = slices.Clone(r.Categories)
		groups[topic] = append(groups[topic], r)
	}

	return topics, groups
}

func newNode(topic string, resources []domain.Resource) domain.RoadmapNode {
	return domain.RoadmapNode{
		Title:       capitalize(topic),
		Topic:       topic,
		Description: fmt.Sprintf("Resources related to %s", topic),
		Resources:   resources,
		Categories:  []string{topic},
		IsCompleted: allCompleted(resources),
		Difficulty:  NodeDifficulty(resources),
		Progress:    progress(resources),
	}
}

// ResourceDifficulty classifies a single resource from indicator phrases in
// its title and notes. Matching is plain substring search.
func ResourceDifficulty(r domain.Resource) domain.Difficulty {
	text := strings.ToLower(r.Title + " " + r.Notes)

	if containsAny(text, advancedIndicators) {
		return domain.Advanced
	}
	if containsAny(text, beginnerIndicators) {
		return domain.Beginner
	}
	return domain.Intermediate
}

// NodeDifficulty averages the resource difficulties of a group. The group
// must not be empty.
func NodeDifficulty(resources []domain.Resource) domain.Difficulty {
	if len(resources) == 0 {
		panic("roadmap: difficulty of an empty resource group")
	}

	total := 0
	for _, r := range resources {
		total += ResourceDifficulty(r).Rank()
	}
	avg := float64(total) / float64(len(resources))

	switch {
	case avg > 1.5:
		return domain.Advanced
	case avg > 0.5:
		return domain.Intermediate
	}
	return domain.Beginner
}

// compareNodes puts incomplete nodes first, then orders by difficulty
func compareNodes(a, b domain.RoadmapNode) int {
	if a.IsCompleted != b.IsCompleted {
		if a.IsCompleted {
			return 1
		}
		return -1
	}
	return a.Difficulty.Rank() - b.Difficulty.Rank()
}

// applyLocks marks node i locked when some earlier node has resources but
// none of them completed.
func applyLocks(nodes []domain.RoadmapNode) {
	blocked := false
	for i := range nodes {
		nodes[i].Locked = i > 0 && blocked
		if len(nodes[i].Resources) > 0 && !anyCompleted(nodes[i].Resources) {
			blocked = true
		}
	}
}

func allCompleted(resources []domain.Resource) bool {
	for _, r := range resources {
		if !r.IsCompleted {
			return false
		}
	}
	return true
}

func anyCompleted(resources []domain.Resource) bool {
	for _, r := range resources {
		if r.IsCompleted {
			return true
		}
	}
	return false
}

// progress is the percentage of completed resources, rounded down
func progress(resources []domain.Resource) int {
	if len(resources) == 0 {
		return 0
	}
	done := 0
	for _, r := range resources {
		if r.IsCompleted {
			done++
		}
	}
	return done * 100 / len(resources)
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
