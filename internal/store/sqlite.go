package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pbaille/funnel/internal/domain"
)

// driverName is go-sqlite3 with a Unicode-aware ulower() function. SQLite's
// built-in LOWER() only folds ASCII.
const driverName = "sqlite3_funnel"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("ulower", strings.ToLower, true)
		},
	})
}

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when no resource matches an id for the user
	ErrNotFound = errors.New("resource not found")
	// ErrAmbiguousID is returned when an id prefix matches several resources
	ErrAmbiguousID = errors.New("resource id prefix is ambiguous")
)

const resourceColumns = "id, user_id, title, url, notes, is_completed, progress, created_at"

// Store handles database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used for creation timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new Store with the given database path
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, "file:"+dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddResource stores a new resource with its categories and returns it
func (s *Store) AddResource(ctx context.Context, userID string, in domain.NewResource, categories []string) (*domain.Resource, error) {
	r := &domain.Resource{
		ID:         uuid.New().String(),
		UserID:     userID,
		Title:      in.Title,
		URL:        in.URL,
		Notes:      in.Notes,
		Categories: nonNil(categories),
		CreatedAt:  s.now().UTC(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO resources ("+resourceColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			r.ID, r.UserID, r.Title, r.URL, r.Notes, r.IsCompleted, r.Progress, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert resource: %w", err)
		}
		return s.linkCategories(ctx, tx, r.ID, r.Categories)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetResource retrieves a user's resource by id or unique id prefix
func (s *Store) GetResource(ctx context.Context, userID, id string) (*domain.Resource, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+resourceColumns+" FROM resources WHERE user_id = ? AND id LIKE ? ESCAPE '\\' ORDER BY id LIMIT 2",
		userID, escapeLike(id)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	matches, err := scanResources(rows)
	if err != nil {
		return nil, err
	}

	var found *domain.Resource
	switch {
	case len(matches) == 0:
		return nil, ErrNotFound
	case matches[0].ID == id, len(matches) == 1:
		found = &matches[0]
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}

	if err := s.attachCategories(ctx, []*domain.Resource{found}); err != nil {
		return nil, err
	}
	return found, nil
}

// ListResources returns a user's resources filtered and sorted. The default
// order is newest first.
func (s *Store) ListResources(ctx context.Context, userID string, f domain.ResourceFilter) ([]domain.Resource, error) {
	var (
		where = []string{"r.user_id = ?"}
		args  = []interface{}{userID}
	)

	if q := strings.TrimSpace(f.Search); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, "(ulower(r.title) LIKE ? ESCAPE '\\' OR ulower(COALESCE(r.notes, '')) LIKE ? ESCAPE '\\')")
		args = append(args, pattern, pattern)
	}
	if f.Category != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM resource_categories rc
			JOIN categories c ON c.id = rc.category_id
			WHERE rc.resource_id = r.id AND c.name = ?)`)
		args = append(args, f.Category)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		"SELECT %s FROM resources r WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		prefixed("r.", resourceColumns), strings.Join(where, " AND "), orderBy(f.Sort),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	resources, err := scanResources(rows)
	if err != nil {
		return nil, err
	}

	ptrs := make([]*domain.Resource, len(resources))
	for i := range resources {
		ptrs[i] = &resources[i]
	}
	if err := s.attachCategories(ctx, ptrs); err != nil {
		return nil, err
	}
	return resources, nil
}

// UpdateResource writes the mutable fields of r. Categories are replaced only
// when withCategories is set.
func (s *Store) UpdateResource(ctx context.Context, r domain.Resource, withCategories bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE resources SET title = ?, url = ?, notes = ?, is_completed = ?, progress = ? WHERE id = ? AND user_id = ?",
			r.Title, r.URL, r.Notes, r.IsCompleted, domain.ClampProgress(r.Progress), r.ID, r.UserID,
		)
		if err != nil {
			return fmt.Errorf("update resource: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update resource: %w", err)
		} else if n == 0 {
			return ErrNotFound
		}

		if !withCategories {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM resource_categories WHERE resource_id = ?", r.ID); err != nil {
			return fmt.Errorf("clear resource categories: %w", err)
		}
		return s.linkCategories(ctx, tx, r.ID, r.Categories)
	})
}

// DeleteResource removes a user's resource and its category links
func (s *Store) DeleteResource(ctx context.Context, userID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM resource_categories WHERE resource_id IN (SELECT id FROM resources WHERE id = ? AND user_id = ?)",
			id, userID,
		); err != nil {
			return fmt.Errorf("delete resource categories: %w", err)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM resources WHERE id = ? AND user_id = ?", id, userID)
		if err != nil {
			return fmt.Errorf("delete resource: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("delete resource: %w", err)
		} else if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListCategories returns the categories used by a user's resources with
// their resource counts, ordered by name
func (s *Store) ListCategories(ctx context.Context, userID string) ([]domain.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, COUNT(*)
		FROM categories c
		JOIN resource_categories rc ON rc.category_id = c.id
		JOIN resources r ON r.id = rc.resource_id
		WHERE r.user_id = ?
		GROUP BY c.name
		ORDER BY c.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	counts := []domain.CategoryCount{}
	for rows.Next() {
		var c domain.CategoryCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) linkCategories(ctx context.Context, tx *sql.Tx, resourceID string, categories []string) error {
	for pos, name := range categories {
		categoryID, err := s.getOrCreateCategory(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO resource_categories (resource_id, category_id, position) VALUES (?, ?, ?)",
			resourceID, categoryID, pos,
		); err != nil {
			return fmt.Errorf("link resource category: %w", err)
		}
	}
	return nil
}

// getOrCreateCategory finds a category by name or creates it
func (s *Store) getOrCreateCategory(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, "SELECT id FROM categories WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find category: %w", err)
	}

	id = uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)",
		id, name, s.now().UTC(),
	); err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

// attachCategories loads the ordered category labels of the given resources
func (s *Store) attachCategories(ctx context.Context, resources []*domain.Resource) error {
	if len(resources) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Resource, len(resources))
	placeholders := make([]string, len(resources))
	args := make([]interface{}, len(resources))
	for i, r := range resources {
		r.Categories = []string{}
		byID[r.ID] = r
		placeholders[i] = "?"
		args[i] = r.ID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rc.resource_id, c.name
		FROM resource_categories rc
		JOIN categories c ON c.id = rc.category_id
		WHERE rc.resource_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY rc.resource_id, rc.position
	`, args...)
	if err != nil {
		return fmt.Errorf("get resource categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var resourceID, name string
		if err := rows.Scan(&resourceID, &name); err != nil {
			return fmt.Errorf("scan resource category: %w", err)
		}
		if r, ok := byID[resourceID]; ok {
			r.Categories = append(r.Categories, name)
		}
	}
	return rows.Err()
}

func scanResources(rows *sql.Rows) ([]domain.Resource, error) {
	defer rows.Close()

	var resources []domain.Resource
	for rows.Next() {
		var (
			r     domain.Resource
			notes sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.URL, &notes, &r.IsCompleted, &r.Progress, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		r.Notes = notes.String
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	if resources == nil {
		resources = []domain.Resource{}
	}
	return resources, nil
}

func orderBy(sort domain.SortOption) string {
	switch sort {
	case domain.SortDateAsc:
		return "r.created_at ASC, r.rowid ASC"
	case domain.SortTitle:
		return "r.title COLLATE NOCASE ASC, r.created_at DESC"
	case domain.SortProgress:
		return "r.progress DESC, r.created_at DESC"
	default:
		return "r.created_at DESC, r.rowid DESC"
	}
}

func prefixed(prefix, columns string) string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = prefix + c
	}
	return strings.Join(cols, ", ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
