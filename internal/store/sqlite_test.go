package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/funnel/internal/domain"
)

// newTestStore opens a store whose clock advances one minute per call
func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s, err := New(filepath.Join(t.TempDir(), "funnel.db"), WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func add(t *testing.T, s *Store, user, title, notes string, categories ...string) *domain.Resource {
	t.Helper()
	r, err := s.AddResource(context.Background(), user,
		domain.NewResource{Title: title, URL: "https://example.com/" + title, Notes: notes}, categories)
	require.NoError(t, err)
	return r
}

func titles(rs []domain.Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Title
	}
	return out
}

func TestAddAndGetResource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := add(t, s, "alice", "Go tour", "learn go", "programming", "learning")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"programming", "learning"}, created.Categories)
	assert.False(t, created.IsCompleted)
	assert.Equal(t, 0, created.Progress)

	got, err := s.GetResource(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "Go tour", got.Title)
	assert.Equal(t, "https://example.com/Go tour", got.URL)
	assert.Equal(t, "learn go", got.Notes)
	assert.Equal(t, []string{"programming", "learning"}, got.Categories)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestCategoryOrderIsPreserved(t *testing.T) {
	s := newTestStore(t)
	r := add(t, s, "alice", "Mixed", "", "technology", "design", "programming")

	got, err := s.GetResource(context.Background(), "alice", r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"technology", "design", "programming"}, got.Categories)
}

func TestResourceWithoutCategories(t *testing.T) {
	s := newTestStore(t)
	r := add(t, s, "alice", "Plain", "")

	got, err := s.GetResource(context.Background(), "alice", r.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Categories)
	assert.Empty(t, got.Categories)
}

func TestGetResourceByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := add(t, s, "alice", "Go tour", "")

	got, err := s.GetResource(ctx, "alice", r.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = s.GetResource(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetResource(ctx, "alice", "%")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetResourceAmbiguousPrefix(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 40; i++ {
		add(t, s, "alice", "r", "")
	}
	// 40 uuids over 16 possible first characters must share one.
	_, err := s.GetResource(context.Background(), "alice", "")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.ListResources(context.Background(), "alice", domain.ResourceFilter{})
	require.NoError(t, err)
	seen := map[byte]bool{}
	var shared string
	for _, r := range all {
		if seen[r.ID[0]] {
			shared = r.ID[:1]
			break
		}
		seen[r.ID[0]] = true
	}
	require.NotEmpty(t, shared)

	_, err = s.GetResource(context.Background(), "alice", shared)
	assert.ErrorIs(t, err, ErrAmbiguousID)
}

func TestResourcesAreScopedByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := add(t, s, "alice", "Private", "", "design")

	_, err := s.GetResource(ctx, "bob", r.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListResources(ctx, "bob", domain.ResourceFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, s.DeleteResource(ctx, "bob", r.ID), ErrNotFound)

	r.UserID = "bob"
	assert.ErrorIs(t, s.UpdateResource(ctx, *r, false), ErrNotFound)

	cats, err := s.ListCategories(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestListResourcesSorting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := add(t, s, "alice", "beta", "")
	b := add(t, s, "alice", "Alpha", "")
	c := add(t, s, "alice", "gamma", "")

	b.Progress = 80
	require.NoError(t, s.UpdateResource(ctx, *b, false))
	a.Progress = 30
	require.NoError(t, s.UpdateResource(ctx, *a, false))
	_ = c

	tests := []struct {
		sort domain.SortOption
		want []string
	}{
		{"", []string{"gamma", "Alpha", "beta"}},
		{domain.SortDateDesc, []string{"gamma", "Alpha", "beta"}},
		{domain.SortDateAsc, []string{"beta", "Alpha", "gamma"}},
		{domain.SortTitle, []string{"Alpha", "beta", "gamma"}},
		{domain.SortProgress, []string{"Alpha", "beta", "gamma"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			got, err := s.ListResources(ctx, "alice", domain.ResourceFilter{Sort: tt.sort})
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestListResourcesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	add(t, s, "alice", "React hooks", "", "programming")
	add(t, s, "alice", "Colour", "Notes about REACT native styling", "design", "programming")
	add(t, s, "alice", "100% coverage", "", "programming")
	add(t, s, "alice", "Figma", "", "design")

	got, err := s.ListResources(ctx, "alice", domain.ResourceFilter{Search: "react"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Colour", "React hooks"}, titles(got))

	got, err = s.ListResources(ctx, "alice", domain.ResourceFilter{Category: "design"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Figma", "Colour"}, titles(got))
	assert.Equal(t, []string{"design", "programming"}, got[1].Categories)

	got, err = s.ListResources(ctx, "alice", domain.ResourceFilter{Search: "react", Category: "design"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Colour"}, titles(got))

	got, err = s.ListResources(ctx, "alice", domain.ResourceFilter{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"100% coverage"}, titles(got))

	got, err = s.ListResources(ctx, "alice", domain.ResourceFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"100% coverage", "Colour"}, titles(got))
}

func TestListResourcesSearchFoldsUnicode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	add(t, s, "alice", "Über Go", "")
	add(t, s, "alice", "Rust", "Ärger mit dem Borrow-Checker")
	add(t, s, "alice", "Plain", "")

	tests := []struct {
		search string
		want   []string
	}{
		{"über", []string{"Über Go"}},
		{"Über", []string{"Über Go"}},
		{"ÜBER GO", []string{"Über Go"}},
		{"ärger", []string{"Rust"}},
		{"borrow-checker", []string{"Rust"}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got, err := s.ListResources(ctx, "alice", domain.ResourceFilter{Search: tt.search})
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestUpdateResource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := add(t, s, "alice", "Go tour", "", "programming")

	r.Notes = "chapter 3"
	r.Progress = 150
	r.IsCompleted = true
	r.Categories = []string{"learning"}
	require.NoError(t, s.UpdateResource(ctx, *r, false))

	got, err := s.GetResource(ctx, "alice", r.ID)
	require.NoError(t, err)
	assert.Equal(t, "chapter 3", got.Notes)
	assert.Equal(t, 100, got.Progress)
	assert.True(t, got.IsCompleted)
	assert.Equal(t, []string{"programming"}, got.Categories, "categories untouched")

	require.NoError(t, s.UpdateResource(ctx, *r, true))
	got, err = s.GetResource(ctx, "alice", r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"learning"}, got.Categories)
}

func TestDeleteResource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := add(t, s, "alice", "Go tour", "", "programming")
	add(t, s, "alice", "Figma", "", "design")

	require.NoError(t, s.DeleteResource(ctx, "alice", r.ID))

	_, err := s.GetResource(ctx, "alice", r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteResource(ctx, "alice", r.ID), ErrNotFound)

	cats, err := s.ListCategories(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.CategoryCount{{Name: "design", Count: 1}}, cats)
}

func TestListCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	add(t, s, "alice", "a", "", "programming", "learning")
	add(t, s, "alice", "b", "", "programming")
	add(t, s, "bob", "c", "", "design")

	cats, err := s.ListCategories(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.CategoryCount{
		{Name: "learning", Count: 1},
		{Name: "programming", Count: 2},
	}, cats)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funnel.db")
	s, err := New(path)
	require.NoError(t, err)
	r, err := s.AddResource(context.Background(), "alice",
		domain.NewResource{Title: "Go", URL: "https://go.dev"}, []string{"programming"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(context.Background()))

	got, err := s.GetResource(context.Background(), "alice", r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"programming"}, got.Categories)
}
