// Package store persists templates, requests and submitted values in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Store is a SQLite backed repository.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a different database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, logger: logging.OrDiscard(logger).With("component", "store")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateTemplate inserts t. Fields are stored as JSON in normalized units.
func (s *Store) CreateTemplate(ctx context.Context, t *forms.Template) error {
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO templates(
		id, name, description, category, version, active, document_url,
		natural_width, natural_height, page_count, fields_json, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Name, t.Description, t.Category, t.Version, boolInt(t.Active), t.DocumentURL,
		t.Natural.Width, t.Natural.Height, t.PageCount, string(fields), millis(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert template %s: %w", t.ID, err)
	}
	return nil
}

const templateColumns = `id, name, description, category, version, active, document_url,
	natural_width, natural_height, page_count, fields_json, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (*forms.Template, error) {
	var (
		t       forms.Template
		active  int
		fields  string
		created int64
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.Version, &active, &t.DocumentURL,
		&t.Natural.Width, &t.Natural.Height, &t.PageCount, &fields, &created)
	if err != nil {
		return nil, err
	}
	t.Active = active != 0
	t.CreatedAt = fromMillis(created)
	if err := json.Unmarshal([]byte(fields), &t.Fields); err != nil {
		return nil, fmt.Errorf("template %s: corrupt fields: %w", t.ID, err)
	}
	return &t, nil
}

// GetTemplate loads a template by id.
func (s *Store) GetTemplate(ctx context.Context, id string) (*forms.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id=?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", id, err)
	}
	return t, nil
}

// ListTemplates returns templates newest first. activeOnly filters out
// deactivated ones.
func (s *Store) ListTemplates(ctx context.Context, activeOnly bool) ([]*forms.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	if activeOnly {
		query += ` WHERE active=1`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []*forms.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateRequest inserts r. Values are stored separately with SaveValues.
func (s *Store) CreateRequest(ctx context.Context, r *forms.Request) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO requests(
		id, template_id, status, submitted_at, filled_document_url, created_at)
		VALUES(?,?,?,?,?,?)`,
		r.ID, r.TemplateID, string(r.Status), nullMillis(r.SubmittedAt), r.FilledDocumentURL, millis(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request %s: %w", r.ID, err)
	}
	return nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: millis(*t), Valid: true}
}

const requestColumns = `id, template_id, status, submitted_at, filled_document_url, created_at`

func scanRequest(row scanner) (*forms.Request, error) {
	var (
		r         forms.Request
		status    string
		submitted sql.NullInt64
		created   int64
	)
	if err := row.Scan(&r.ID, &r.TemplateID, &status, &submitted, &r.FilledDocumentURL, &created); err != nil {
		return nil, err
	}
	r.Status = forms.Status(status)
	r.CreatedAt = fromMillis(created)
	if submitted.Valid {
		at := fromMillis(submitted.Int64)
		r.SubmittedAt = &at
	}
	return &r, nil
}

// GetRequest loads a request and its values.
func (s *Store) GetRequest(ctx context.Context, id string) (*forms.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	if r.Values, err = s.Values(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRequests returns requests newest first, optionally for one template.
// Values are not loaded.
func (s *Store) ListRequests(ctx context.Context, templateID string) ([]*forms.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	var args []any
	if templateID != "" {
		query += ` WHERE template_id=?`
		args = append(args, templateID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []*forms.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRequestStatus sets the status of a request, and its submission
// time when submittedAt is not nil.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status forms.Status, submittedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status=?, submitted_at=COALESCE(?, submitted_at) WHERE id=?`,
		string(status), nullMillis(submittedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", id, err)
	}
	return expectOne(res, "request", id)
}

// SetFilledDocument records where the filled PDF of a request was written.
func (s *Store) SetFilledDocument(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE requests SET filled_document_url=? WHERE id=?`, url, id)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", id, err)
	}
	return expectOne(res, "request", id)
}

func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// SaveValues upserts values for a request in one transaction.
func (s *Store) SaveValues(ctx context.Context, requestID string, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := millis(time.Now())
	for fieldID, value := range values {
		_, err := tx.ExecContext(ctx, `INSERT INTO request_values(request_id, field_id, value, updated_at)
			VALUES(?,?,?,?)
			ON CONFLICT(request_id, field_id) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
			requestID, fieldID, value, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save value for field %s: %w", fieldID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit values: %w", err)
	}
	s.logger.Debug("saved values", "request", requestID, "count", len(values))
	return nil
}

// Values returns the submitted values of a request keyed by field id.
func (s *Store) Values(ctx context.Context, requestID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field_id, value FROM request_values WHERE request_id=?`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var fieldID, value string
		if err := rows.Scan(&fieldID, &value); err != nil {
			return nil, err
		}
		values[fieldID] = value
	}
	return values, rows.Err()
}
