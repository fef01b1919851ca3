package store

import (
	"context"
	"fmt"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
)

// migrations are applied in order; each runs once, in its own transaction.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			document_url TEXT NOT NULL,
			natural_width REAL NOT NULL DEFAULT 0,
			natural_height REAL NOT NULL DEFAULT 0,
			page_count INTEGER NOT NULL DEFAULT 0,
			fields_json TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES templates(id),
			status TEXT NOT NULL,
			submitted_at INTEGER,
			filled_document_url TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_template ON requests(template_id);`,
		`CREATE TABLE IF NOT EXISTS request_values (
			request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
			field_id TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(request_id, field_id)
		);`,
	},
	{
		`CREATE TABLE IF NOT EXISTS template_field_types (
			type TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			default_width REAL NOT NULL,
			default_height REAL NOT NULL,
			font_size REAL NOT NULL DEFAULT 14,
			fillable INTEGER NOT NULL DEFAULT 1,
			sort_order INTEGER NOT NULL DEFAULT 0
		);`,
	},
	{
		`CREATE TABLE IF NOT EXISTS field_catalog (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			label TEXT NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			default_width REAL NOT NULL,
			default_height REAL NOT NULL,
			amount INTEGER NOT NULL DEFAULT 0,
			font TEXT NOT NULL DEFAULT '',
			font_size REAL NOT NULL DEFAULT 14,
			fillable INTEGER NOT NULL DEFAULT 1,
			sort_order INTEGER NOT NULL DEFAULT 0
		);`,
		`INSERT INTO field_catalog(id, name, type, label, default_width, default_height, font_size, fillable, sort_order)
			SELECT type, type, type, label, default_width, default_height, font_size, fillable, sort_order
			FROM template_field_types;`,
		`DROP TABLE template_field_types;`,
	},
}

// catalogVersion is the migration that created field_catalog. The default
// entries are seeded only when it is applied, so deleted entries stay
// deleted.
const catalogVersion = 3

// defaultFieldTypes seeds the catalog, one unlimited entry per field type
// with the type as its id. Sizes are display pixels.
var defaultFieldTypes = []FieldTypeInfo{
	{Type: forms.TypeText, Icon: "text", DefaultWidth: 150, DefaultHeight: 40, FontSize: 14, Fillable: true},
	{Type: forms.TypeSignature, Icon: "signature", DefaultWidth: 200, DefaultHeight: 60, FontSize: 14, Fillable: true},
	{Type: forms.TypeDate, Icon: "calendar", DefaultWidth: 120, DefaultHeight: 40, FontSize: 14, Fillable: true},
	{Type: forms.TypeCheckbox, Icon: "check", DefaultWidth: 40, DefaultHeight: 40, FontSize: 14, Fillable: true},
	{Type: forms.TypeNumber, Icon: "hash", DefaultWidth: 100, DefaultHeight: 40, FontSize: 14, Fillable: true},
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		if err := s.apply(ctx, version, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", version, err)
		}
		s.logger.Debug("applied migration", "version", version)
	}
	if current < catalogVersion {
		return s.seedFieldTypes(ctx)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, version int, statements []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES(?)`, version); err != nil {
		return err
	}
	return tx.Commit()
}

// seedFieldTypes inserts default entries that are missing. Entries carried
// over from an older catalog keep their edited values.
func (s *Store) seedFieldTypes(ctx context.Context) error {
	for i, ft := range defaultFieldTypes {
		_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO field_catalog(
			id, name, type, label, icon, default_width, default_height, font_size, fillable, sort_order)
			VALUES(?,?,?,?,?,?,?,?,?,?)`,
			string(ft.Type), string(ft.Type), string(ft.Type), ft.Type.Label(), ft.Icon,
			ft.DefaultWidth, ft.DefaultHeight, ft.FontSize, boolInt(ft.Fillable), i,
		)
		if err != nil {
			return fmt.Errorf("failed to seed field type %s: %w", ft.Type, err)
		}
	}
	return nil
}
