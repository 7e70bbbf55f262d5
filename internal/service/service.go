package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/pbaille/funnel/internal/domain"
	"github.com/pbaille/funnel/internal/fetcher"
	"github.com/pbaille/funnel/internal/logger"
	"github.com/pbaille/funnel/internal/roadmap"
)

// Store is the storage collaborator
type Store interface {
	AddResource(ctx context.Context, userID string, in domain.NewResource, categories []string) (*domain.Resource, error)
	GetResource(ctx context.Context, userID, id string) (*domain.Resource, error)
	ListResources(ctx context.Context, userID string, f domain.ResourceFilter) ([]domain.Resource, error)
	UpdateResource(ctx context.Context, r domain.Resource, withCategories bool) error
	DeleteResource(ctx context.Context, userID, id string) error
	ListCategories(ctx context.Context, userID string) ([]domain.CategoryCount, error)
}

// Categorizer assigns category labels to a title and free text
type Categorizer interface {
	Categorize(title, content string) []string
}

// MetadataFetcher returns best-effort page metadata and never fails
type MetadataFetcher interface {
	Metadata(ctx context.Context, url string) domain.Metadata
}

// ErrNoUser is returned when an operation has no user to scope it to
var ErrNoUser = errors.New("no authenticated user")

// Service implements the resource flows shared by the CLI and the HTTP API
type Service struct {
	store       Store
	categorizer Categorizer
	fetcher     MetadataFetcher
	concurrency int
	log         *logger.Logger
}

// New creates a Service. fetcher may be nil, in which case URLs are added
// without metadata.
func New(store Store, categorizer Categorizer, fetcher MetadataFetcher, concurrency int, log *logger.Logger) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:       store,
		categorizer: categorizer,
		fetcher:     fetcher,
		concurrency: concurrency,
		log:         log,
	}
}

// Add validates and stores a new resource. Categories are computed once,
// from the submitted title and notes.
func (s *Service) Add(ctx context.Context, userID string, in domain.NewResource) (*domain.Resource, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	categories := s.categorizer.Categorize(in.Title, in.Notes)
	r, err := s.store.AddResource(ctx, userID, in, categories)
	if err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	s.log.Info("resource added", "user", userID, "id", r.ID, "categories", categories)
	return r, nil
}

// AddURL adds a resource for rawURL, filling a missing title or notes from
// the page metadata. A failed fetch never blocks the add.
func (s *Service) AddURL(ctx context.Context, userID, rawURL string, in domain.NewResource) (*domain.Resource, error) {
	u, err := fetcher.Normalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: url must be a valid absolute URL", domain.ErrInvalid)
	}
	in.URL = u

	if s.fetcher != nil && (strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Notes) == "") {
		in = withMetadata(in, s.fetcher.Metadata(ctx, u))
	}
	if strings.TrimSpace(in.Title) == "" {
		in.Title = u
	}
	return s.Add(ctx, userID, in)
}

// AddFile adds a resource from a local text, markdown or HTML file. A
// non-empty title or notes in in replaces the value read from the file.
func (s *Service) AddFile(ctx context.Context, userID, path string, in domain.NewResource) (*domain.Resource, error) {
	f, err := fetcher.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		in.Title = f.Title
	}
	if strings.TrimSpace(in.Notes) == "" {
		in.Notes = f.Notes
	}
	in.URL = f.URL
	return s.Add(ctx, userID, in)
}

// withMetadata fills empty fields from md. A title equal to the URL is the
// fetcher's fallback and is not used.
func withMetadata(in domain.NewResource, md domain.Metadata) domain.NewResource {
	if strings.TrimSpace(in.Title) == "" && md.Title != in.URL {
		in.Title = md.Title
	}
	if strings.TrimSpace(in.Notes) == "" {
		in.Notes = truncate(md.Description, domain.MaxNotesLength)
	}
	return in
}

// Get returns one of the user's resources by id or id prefix
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Resource, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	return s.store.GetResource(ctx, userID, id)
}

// List returns the user's resources for the grid view
func (s *Service) List(ctx context.Context, userID string, f domain.ResourceFilter) ([]domain.Resource, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if !f.Sort.Valid() {
		return nil, fmt.Errorf("%w: unknown sort %q", domain.ErrInvalid, f.Sort)
	}
	return s.store.ListResources(ctx, userID, f)
}

// Update applies a partial edit. Categories are recomputed only when the
// title or notes are resubmitted.
func (s *Service) Update(ctx context.Context, userID, id string, upd domain.ResourceUpdate) (*domain.Resource, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	r, err := s.store.GetResource(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		r.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.URL != nil {
		r.URL = strings.TrimSpace(*upd.URL)
	}
	if upd.Notes != nil {
		r.Notes = strings.TrimSpace(*upd.Notes)
	}
	if upd.IsCompleted != nil {
		r.IsCompleted = *upd.IsCompleted
	}
	if upd.Progress != nil {
		r.Progress = domain.ClampProgress(*upd.Progress)
	}

	recategorize := upd.Recategorize()
	if recategorize {
		r.Categories = s.categorizer.Categorize(r.Title, r.Notes)
	}

	if err := s.store.UpdateResource(ctx, *r, recategorize); err != nil {
		return nil, fmt.Errorf("update resource: %w", err)
	}

	s.log.Info("resource updated", "user", userID, "id", r.ID, "recategorized", recategorize)
	return r, nil
}

// Delete removes one of the user's resources by id or id prefix
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrNoUser
	}
	r, err := s.store.GetResource(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteResource(ctx, userID, r.ID); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	s.log.Info("resource deleted", "user", userID, "id", r.ID)
	return nil
}

// Roadmap builds the roadmap over the user's filtered resource list
func (s *Service) Roadmap(ctx context.Context, userID string, f domain.ResourceFilter) ([]domain.RoadmapNode, error) {
	resources, err := s.List(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return roadmap.Build(resources)
}

// Categories returns the labels used by the user's resources with counts
func (s *Service) Categories(ctx context.Context, userID string) ([]domain.CategoryCount, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	return s.store.ListCategories(ctx, userID)
}

// Categorize previews the categories a title and text would get
func (s *Service) Categorize(title, content string) []string {
	return s.categorizer.Categorize(title, content)
}

// Metadata fetches page metadata for the add form
func (s *Service) Metadata(ctx context.Context, rawURL string) domain.Metadata {
	if s.fetcher == nil {
		return domain.Metadata{Title: rawURL}
	}
	return s.fetcher.Metadata(ctx, rawURL)
}

// ImportResult reports the outcome of importing one URL
type ImportResult struct {
	URL      string           `json:"url"`
	Resource *domain.Resource `json:"resource,omitempty"`
	Err      error            `json:"-"`
}

// Import adds one resource per URL. Metadata is fetched concurrently;
// resources are stored in input order. A failure on one URL does not stop
// the others.
func (s *Service) Import(ctx context.Context, userID string, urls []string) ([]ImportResult, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	results := make([]ImportResult, len(urls))
	inputs := make([]domain.NewResource, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, raw := range urls {
		results[i].URL = raw
		u, err := fetcher.Normalize(raw)
		if err != nil {
			results[i].Err = fmt.Errorf("%w: url must be a valid absolute URL", domain.ErrInvalid)
			continue
		}
		inputs[i].URL = u
		if s.fetcher == nil {
			continue
		}
		g.Go(func() error {
			inputs[i] = withMetadata(inputs[i], s.fetcher.Metadata(gctx, u))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range urls {
		if results[i].Err != nil {
			continue
		}
		if strings.TrimSpace(inputs[i].Title) == "" {
			inputs[i].Title = inputs[i].URL
		}
		results[i].Resource, results[i].Err = s.Add(ctx, userID, inputs[i])
		if results[i].Err != nil {
			s.log.Warn("import failed", "url", urls[i], "error", results[i].Err)
		}
	}
	return results, nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
