package classifier

// Category is a topic label with the keyword phrases that signal it
type Category struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Vocabulary is the ordered category table. Its order is the canonical
// tie-break order for categories with equal match counts.
type Vocabulary []Category

// Labels returns the category names in canonical order
func (v Vocabulary) Labels() []string {
	labels := make([]string, len(v))
	for i, c := range v {
		labels[i] = c.Name
	}
	return labels
}

// DefaultVocabulary returns the built-in keyword table
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		{
			Name: "programming",
			Keywords: []string{
				"code", "programming", "javascript", "typescript", "python",
				"java", "react", "angular", "vue", "node", "api", "backend",
				"frontend", "fullstack", "web", "development", "github", "git",
				"coding", "software", "app", "developer",
			},
		},
		{
			Name: "design",
			Keywords: []string{
				"design", "ui", "ux", "interface", "visual", "figma", "sketch",
				"adobe", "prototype", "wireframe", "layout", "typography",
				"color", "accessibility", "user experience", "user interface",
				"responsive",
			},
		},
		{
			Name: "business",
			Keywords: []string{
				"business", "startup", "marketing", "strategy", "product",
				"management", "leadership", "entrepreneur", "sales", "growth",
				"analytics", "metrics", "revenue", "customer", "market", "saas",
				"b2b", "b2c",
			},
		},
		{
			Name: "learning",
			Keywords: []string{
				"course", "tutorial", "learn", "guide", "education", "training",
				"workshop", "documentation", "reference", "resource", "book",
				"video", "lecture", "lesson", "study", "practice",
			},
		},
		{
			Name: "productivity",
			Keywords: []string{
				"productivity", "workflow", "tools", "automation", "efficiency",
				"time", "management", "organization", "planning", "task",
				"project", "process", "methodology", "system",
			},
		},
		{
			Name: "technology",
			Keywords: []string{
				"tech", "ai", "machine learning", "data", "cloud", "security",
				"devops", "infrastructure", "architecture", "database",
				"blockchain", "mobile", "iot", "artificial intelligence", "ml",
				"deep learning",
			},
		},
	}
}
