package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS assets (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	asset_type   TEXT NOT NULL DEFAULT '',
	asset_name   TEXT NOT NULL,
	asset_size   INTEGER NOT NULL CHECK (asset_size >= 0),
	asset_config TEXT,
	pushed_at    TEXT NOT NULL,
	UNIQUE (project_id, asset_name)
);
CREATE TABLE IF NOT EXISTS chunks (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL,
	asset_id       TEXT NOT NULL,
	chunk_order    INTEGER NOT NULL CHECK (chunk_order > 0),
	chunk_text     TEXT NOT NULL,
	chunk_metadata TEXT
);
DROP INDEX IF EXISTS idx_chunks_project_asset;
CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_asset_order ON chunks (project_id, asset_id, chunk_order);
`

// SqliteRegistryStore is the embedded registry and chunk store. Uniqueness comes from the
// schema constraints so concurrent get-or-create calls converge on one row.
type SqliteRegistryStore struct {
	db     *sql.DB
	logger *logger_i.Logger
}

var _ ragModel.Registry = (*SqliteRegistryStore)(nil)
var _ ragModel.ChunkStore = (*SqliteRegistryStore)(nil)

func NewSqliteRegistryStore(ctx context.Context, path string) (*SqliteRegistryStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// one writer at a time, sqlite serialises writes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	s := &SqliteRegistryStore{db: db, logger: logger_i.NewLogger("SqliteStore")}
	s.logger.Info("sqlite store ready", "path", path)
	return s, nil
}

func (s *SqliteRegistryStore) Close() error {
	return s.db.Close()
}

func (s *SqliteRegistryStore) GetOrCreateProject(ctx context.Context, projectId string) (ragModel.Project, error) {
	const op = "get or create project"
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		return ragModel.Project{}, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, project_id, created_at) VALUES (?, ?, ?) ON CONFLICT (project_id) DO NOTHING`,
		uuid.NewString(), projectId, formatTime(time.Now()))
	if err != nil {
		return ragModel.Project{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}

	var p ragModel.Project
	var created string
	err = s.db.QueryRowContext(ctx, `SELECT id, project_id, created_at FROM projects WHERE project_id = ?`, projectId).
		Scan(&p.Id, &p.ProjectId, &created)
	if err != nil {
		return ragModel.Project{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	p.CreatedAt = parseTime(created)
	return p, nil
}

func (s *SqliteRegistryStore) CreateAsset(ctx context.Context, asset ragModel.Asset) (ragModel.Asset, error) {
	const op = "create asset"
	asset = withAssetDefaults(asset)
	if err := ragModel.ValidateAsset(asset); err != nil {
		return ragModel.Asset{}, err
	}
	cfg, err := encodeMap(asset.AssetConfig)
	if err != nil {
		return ragModel.Asset{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assets (id, project_id, asset_type, asset_name, asset_size, asset_config, pushed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (project_id, asset_name) DO NOTHING`,
		asset.Id, asset.ProjectId, asset.AssetType, asset.AssetName, asset.AssetSize, cfg, formatTime(asset.PushedAt))
	if err != nil {
		return ragModel.Asset{}, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	return s.FindAsset(ctx, asset.ProjectId, asset.AssetName)
}

const assetColumns = `id, project_id, asset_type, asset_name, asset_size, asset_config, pushed_at`

func (s *SqliteRegistryStore) FindAsset(ctx context.Context, projectId, assetName string) (ragModel.Asset, error) {
	const op = "find asset"
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE project_id = ? AND asset_name = ?`, projectId, assetName)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ragModel.NewError(ragModel.ErrSourceNotFound, op, "asset %q not found in project %q", assetName, projectId)
	}
	if err != nil {
		return a, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	return a, nil
}

func (s *SqliteRegistryStore) ListAssets(ctx context.Context, projectId string) ([]ragModel.Asset, error) {
	const op = "list assets"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE project_id = ? ORDER BY pushed_at, asset_name`, projectId)
	if err != nil {
		return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	defer rows.Close()

	var out []ragModel.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	return out, nil
}

func (s *SqliteRegistryStore) InsertManyChunks(ctx context.Context, chunks []ragModel.Chunk) (int, error) {
	const op = "insert chunks"
	if len(chunks) == 0 {
		return 0, nil
	}
	for _, c := range chunks {
		if err := validateChunk(c); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	defer tx.Rollback()

	// the pool holds a single connection, so nothing else writes between this count and the commit
	for _, ref := range batchAssets(chunks) {
		var existing int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE project_id = ? AND asset_id = ?`,
			ref.projectId, ref.assetId).Scan(&existing)
		if err != nil {
			return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		if existing > 0 {
			return 0, alreadyProcessed(ref.assetId, existing)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, project_id, asset_id, chunk_order, chunk_text, chunk_metadata) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := encodeMap(c.ChunkMetadata)
		if err != nil {
			return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		if _, err := stmt.ExecContext(ctx, c.Id, c.ProjectId, c.AssetId, c.ChunkOrder, c.ChunkText, meta); err != nil {
			if isUniqueViolation(err) {
				return 0, ragModel.Wrap(ragModel.ErrAssetAlreadyProcessed, op, err)
			}
			return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	return len(chunks), nil
}

const chunkColumns = `id, project_id, asset_id, chunk_order, chunk_text, chunk_metadata`

func (s *SqliteRegistryStore) ListChunks(ctx context.Context, projectId, assetId string) ([]ragModel.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE project_id = ?`
	args := []any{projectId}
	if assetId != "" {
		query += ` AND asset_id = ?`
		args = append(args, assetId)
	}
	query += ` ORDER BY asset_id, chunk_order`
	return s.queryChunks(ctx, "list chunks", query, args...)
}

func (s *SqliteRegistryStore) CountChunks(ctx context.Context, projectId, assetId string) (int, error) {
	query := `SELECT COUNT(*) FROM chunks WHERE project_id = ?`
	args := []any{projectId}
	if assetId != "" {
		query += ` AND asset_id = ?`
		args = append(args, assetId)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, "count chunks", err)
	}
	return n, nil
}

func (s *SqliteRegistryStore) GetChunks(ctx context.Context, projectId string, ids []string) ([]ragModel.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, projectId)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	found, err := s.queryChunks(ctx, "get chunks",
		`SELECT `+chunkColumns+` FROM chunks WHERE project_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}

	// keep the caller's order
	byId := make(map[string]ragModel.Chunk, len(found))
	for _, c := range found {
		byId[c.Id] = c
	}
	out := make([]ragModel.Chunk, 0, len(found))
	for _, id := range ids {
		if c, ok := byId[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *SqliteRegistryStore) DeleteChunks(ctx context.Context, projectId, assetId string) (int, error) {
	query := `DELETE FROM chunks WHERE project_id = ?`
	args := []any{projectId}
	if assetId != "" {
		query += ` AND asset_id = ?`
		args = append(args, assetId)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, "delete chunks", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ragModel.Wrap(ragModel.ErrPersistence, "delete chunks", err)
	}
	s.logger.FromContext(ctx).Info("chunks deleted", "projectId", projectId, "assetId", assetId, "count", n)
	return int(n), nil
}

func (s *SqliteRegistryStore) queryChunks(ctx context.Context, op, query string, args ...any) ([]ragModel.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	defer rows.Close()

	var out []ragModel.Chunk
	for rows.Next() {
		var c ragModel.Chunk
		var meta sql.NullString
		if err := rows.Scan(&c.Id, &c.ProjectId, &c.AssetId, &c.ChunkOrder, &c.ChunkText, &meta); err != nil {
			return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		if c.ChunkMetadata, err = decodeMap(meta); err != nil {
			return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}
	return out, nil
}

// isUniqueViolation reports a clash on (project_id, asset_id, chunk_order), i.e. a second run for the same asset.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (ragModel.Asset, error) {
	var a ragModel.Asset
	var cfg sql.NullString
	var pushed string
	if err := row.Scan(&a.Id, &a.ProjectId, &a.AssetType, &a.AssetName, &a.AssetSize, &cfg, &pushed); err != nil {
		return a, err
	}
	a.PushedAt = parseTime(pushed)
	var err error
	a.AssetConfig, err = decodeMap(cfg)
	return a, err
}

func encodeMap(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeMap(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	err := json.Unmarshal([]byte(s.String), &m)
	return m, err
}

// fixed width so ORDER BY on the text column sorts chronologically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
