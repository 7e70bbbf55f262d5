package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidVocabulary is returned by New for a malformed keyword table
var ErrInvalidVocabulary = errors.New("invalid vocabulary")

var labelPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// Score is the number of keyword matches a category got for one input
type Score struct {
	Category string `json:"category"`
	Matches  int    `json:"matches"`
}

type compiledCategory struct {
	name     string
	patterns []*regexp.Regexp
}

// Classifier assigns categories to text by whole-word keyword counting.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	vocab      Vocabulary
	categories []compiledCategory
}

// New compiles a Classifier for the given vocabulary
func New(vocab Vocabulary) (*Classifier, error) {
	seen := make(map[string]bool, len(vocab))
	c := &Classifier{categories: make([]compiledCategory, 0, len(vocab))}

	for _, cat := range vocab {
		if !labelPattern.MatchString(cat.Name) {
			return nil, fmt.Errorf("%w: category %q must be a single lowercase word", ErrInvalidVocabulary, cat.Name)
		}
		if seen[cat.Name] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidVocabulary, cat.Name)
		}
		seen[cat.Name] = true

		cc := compiledCategory{name: cat.Name, patterns: make([]*regexp.Regexp, 0, len(cat.Keywords))}
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, fmt.Errorf("%w: empty keyword in category %q", ErrInvalidVocabulary, cat.Name)
			}
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("compile keyword %q: %w", kw, err)
			}
			cc.patterns = append(cc.patterns, re)
		}
		c.categories = append(c.categories, cc)
	}

	c.vocab = make(Vocabulary, len(vocab))
	for i, cat := range vocab {
		c.vocab[i] = Category{Name: cat.Name, Keywords: slices.Clone(cat.Keywords)}
	}
	return c, nil
}

// Default returns a Classifier over DefaultVocabulary
func Default() *Classifier {
	c, err := New(DefaultVocabulary())
	if err != nil {
		panic(fmt.Sprintf("default vocabulary: %v", err))
	}
	return c
}

// Categorize returns the matching categories, most matches first
func (c *Classifier) Categorize(title, content string) []string {
	scores := c.Scores(title, content)
	labels := make([]string, len(scores))
	for i, s := range scores {
		labels[i] = s.Category
	}
	return labels
}

// Scores returns the non-zero category scores, ordered by match count
// descending and then by vocabulary position.
func (c *Classifier) Scores(title, content string) []Score {
	corpus := strings.ToLower(title + " " + content)

	type ranked struct {
		Score
		pos int
	}
	var hits []ranked
	for pos, cat := range c.categories {
		n := 0
		for _, re := range cat.patterns {
			n += len(re.FindAllStringIndex(corpus, -1))
		}
		if n > 0 {
			hits = append(hits, ranked{Score: Score{Category: cat.name, Matches: n}, pos: pos})
		}
	}

	slices.SortStableFunc(hits, func(a, b ranked) int {
		if a.Matches != b.Matches {
			return b.Matches - a.Matches
		}
		return a.pos - b.pos
	})

	scores := make([]Score, len(hits))
	for i, h := range hits {
		scores[i] = h.Score
	}
	return scores
}

// Labels returns every category label in canonical order
func (c *Classifier) Labels() []string {
	return c.vocab.Labels()
}

// Vocabulary returns a copy of the table the classifier was built from
func (c *Classifier) Vocabulary() Vocabulary {
	out := make(Vocabulary, len(c.vocab))
	for i, cat := range c.vocab {
		out[i] = Category{Name: cat.Name, Keywords: slices.Clone(cat.Keywords)}
	}
	return out
}

// Contains reports whether label is part of the vocabulary
func (c *Classifier) Contains(label string) bool {
	for _, cat := range c.categories {
		if cat.name == label {
			return true
		}
	}
	return false
}
