package domain

import "time"

// MaxNotesLength is the maximum number of characters kept in a resource's notes
const MaxNotesLength = 500

// Resource represents a saved learning item
type Resource struct {
	ID          string    `json:"id" yaml:"id"`
	UserID      string    `json:"user_id" yaml:"-"`
	Title       string    `json:"title" yaml:"title"`
	URL         string    `json:"url" yaml:"url"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	Categories  []string  `json:"categories" yaml:"categories"`
	IsCompleted bool      `json:"is_completed" yaml:"is_completed"`
	Progress    int       `json:"progress" yaml:"progress"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// NewResource is the user-entered input of the add flow
type NewResource struct {
	Title string `json:"title" validate:"required,max=500"`
	URL   string `json:"url" validate:"required,absurl"`
	Notes string `json:"notes" validate:"max=500"`
}

// ResourceUpdate holds a partial edit. Nil fields are left unchanged.
type ResourceUpdate struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=500"`
	URL         *string `json:"url,omitempty" validate:"omitempty,absurl"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=500"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
	Progress    *int    `json:"progress,omitempty"`
}

// Recategorize reports whether the update resubmits title or notes
func (u ResourceUpdate) Recategorize() bool {
	return u.Title != nil || u.Notes != nil
}

// ClampProgress bounds a progress value to [0,100]
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Difficulty is the derived level of a resource or roadmap node
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Rank orders difficulties: beginner < intermediate < advanced
func (d Difficulty) Rank() int {
	switch d {
	case Advanced:
		return 2
	case Intermediate:
		return 1
	}
	return 0
}

// RoadmapNode is one topic segment of a learning roadmap. It is derived on
// every build and never persisted.
type RoadmapNode struct {
	Title       string     `json:"title" yaml:"title"`
	Topic       string     `json:"topic" yaml:"topic"`
	Description string     `json:"description" yaml:"description"`
	Resources   []Resource `json:"resources" yaml:"resources"`
	Categories  []string   `json:"categories" yaml:"categories"`
	IsCompleted bool       `json:"is_completed" yaml:"is_completed"`
	Difficulty  Difficulty `json:"difficulty" yaml:"difficulty"`
	// Progress is the whole percentage of completed resources, rounded
	// down: 1 of 3 done is 33, and 100 only when all are done.
	Progress int  `json:"progress" yaml:"progress"`
	Locked   bool `json:"locked" yaml:"locked"`
}

// SortOption selects the ordering of a resource listing
type SortOption string

const (
	SortDateDesc SortOption = "date-desc"
	SortDateAsc  SortOption = "date-asc"
	SortTitle    SortOption = "title"
	SortProgress SortOption = "progress"
)

// Valid reports whether s is a known sort option. The empty value means the default.
func (s SortOption) Valid() bool {
	switch s {
	case "", SortDateDesc, SortDateAsc, SortTitle, SortProgress:
		return true
	}
	return false
}

// ResourceFilter narrows and orders a resource listing
type ResourceFilter struct {
	Search   string     `json:"q,omitempty"`
	Category string     `json:"category,omitempty"`
	Sort     SortOption `json:"sort,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

// CategoryCount is a category label with the number of resources carrying it
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Metadata is the best-effort title/description of a web page
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
