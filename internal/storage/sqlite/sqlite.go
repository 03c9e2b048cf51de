package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// DB returns the underlying database, shared with the step journal.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateInstalledItem stores a new installed item.
func (r *Repository) CreateInstalledItem(ctx context.Context, item model.InstalledItem) error {
	query := `
		INSERT INTO installed_items (id, mode_id, name, path, version, format_version, installed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.ModeID,
		item.Name,
		item.Path,
		item.Version,
		item.FormatVersion,
		item.InstalledAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("could not insert installed item: %w", err)
	}

	r.logger.Debugf("Created installed item in repository: %s", item.ID)
	return nil
}

// ListInstalledItems returns the installed items of a game mode.
func (r *Repository) ListInstalledItems(ctx context.Context, modeID string) ([]model.InstalledItem, error) {
	query := `
		SELECT id, mode_id, name, path, version, format_version, installed_at
		FROM installed_items
		WHERE mode_id = ?
		ORDER BY installed_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, modeID)
	if err != nil {
		return nil, fmt.Errorf("could not query installed items: %w", err)
	}
	defer rows.Close()

	var items []model.InstalledItem
	for rows.Next() {
		var item model.InstalledItem
		var installedAt int64
		err := rows.Scan(
			&item.ID,
			&item.ModeID,
			&item.Name,
			&item.Path,
			&item.Version,
			&item.FormatVersion,
			&installedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		item.InstalledAt = time.Unix(installedAt, 0).UTC()
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// UpdateInstalledItem updates an existing installed item.
func (r *Repository) UpdateInstalledItem(ctx context.Context, item model.InstalledItem) error {
	query := `
		UPDATE installed_items
		SET
			mode_id = ?,
			name = ?,
			path = ?,
			version = ?,
			format_version = ?,
			installed_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		item.ModeID,
		item.Name,
		item.Path,
		item.Version,
		item.FormatVersion,
		item.InstalledAt.Unix(),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update installed item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("installed item %s: %w", item.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated installed item in repository: %s", item.ID)
	return nil
}

// DeleteInstalledItem deletes an installed item.
func (r *Repository) DeleteInstalledItem(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM installed_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete installed item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("installed item %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted installed item from repository: %s", id)
	return nil
}

// DeleteModeItems deletes every installed item of a game mode.
func (r *Repository) DeleteModeItems(ctx context.Context, modeID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM installed_items WHERE mode_id = ?`, modeID)
	if err != nil {
		return fmt.Errorf("could not delete installed items: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}

	r.logger.Debugf("Deleted %d installed items of %s from repository", rows, modeID)
	return nil
}
