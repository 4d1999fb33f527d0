package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/maneesh/filesmanager/internal/storage/migrations"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// TiDBClient wraps TiDB (MySQL protocol) operations with tracing
type TiDBClient struct {
	db  *sql.DB
	now func() time.Time
}

// NewTiDBClient initializes a new TiDB client
func NewTiDBClient(ctx context.Context, dsn string) (*TiDBClient, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pingWithRetry(ctx, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return NewTiDBClientFromDB(db), nil
}

// NewTiDBClientFromDB wraps an existing handle
func NewTiDBClientFromDB(db *sql.DB) *TiDBClient {
	return &TiDBClient{db: db, now: time.Now}
}

// Close closes the database connection
func (tc *TiDBClient) Close() error {
	return tc.db.Close()
}

// Ping checks the connection
func (tc *TiDBClient) Ping(ctx context.Context) error {
	if err := tc.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// gooseUp is a seam for tests
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// RunMigrations applies the embedded schema
func (tc *TiDBClient) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	if err := gooseUp(ctx, tc.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateUser inserts a user and sets its id
func (tc *TiDBClient) CreateUser(ctx context.Context, user *models.User) error {
	ctx, span := tracer.Start(ctx, "tidb.create_user")
	defer span.End()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = tc.now().UTC()
	}

	query := `INSERT INTO users (email, password, created_at) VALUES (?, ?, ?)`

	res, err := tc.db.ExecContext(ctx, query, user.Email, user.HashedPassword, user.CreatedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return common.ErrAlreadyExists
		}
		span.RecordError(err)
		return unavailable("insert user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		span.RecordError(err)
		return unavailable("insert user", err)
	}
	user.ID = models.UserID(id)

	span.SetAttributes(attribute.Int64("user_id", id))
	return nil
}

// GetUserByEmail returns common.ErrNotFound for unknown emails
func (tc *TiDBClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "tidb.get_user_by_email")
	defer span.End()

	query := `SELECT id, email, password, created_at FROM users WHERE email = ?`
	return scanUser(span, tc.db.QueryRowContext(ctx, query, email))
}

// GetUser returns common.ErrNotFound for unknown ids
func (tc *TiDBClient) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "tidb.get_user",
		trace.WithAttributes(attribute.Int64("user_id", int64(id))),
	)
	defer span.End()

	query := `SELECT id, email, password, created_at FROM users WHERE id = ?`
	return scanUser(span, tc.db.QueryRowContext(ctx, query, int64(id)))
}

func scanUser(span trace.Span, row *sql.Row) (*models.User, error) {
	var (
		user models.User
		id   int64
	)
	err := row.Scan(&id, &user.Email, &user.HashedPassword, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, common.ErrNotFound
	} else if err != nil {
		span.RecordError(err)
		return nil, unavailable("query user", err)
	}
	user.ID = models.UserID(id)

	span.SetAttributes(attribute.Bool("found", true))
	return &user, nil
}

// CountUsers returns the number of users
func (tc *TiDBClient) CountUsers(ctx context.Context) (int64, error) {
	return tc.count(ctx, "users")
}

// CountFiles returns the number of file nodes
func (tc *TiDBClient) CountFiles(ctx context.Context) (int64, error) {
	return tc.count(ctx, "files")
}

func (tc *TiDBClient) count(ctx context.Context, table string) (int64, error) {
	ctx, span := tracer.Start(ctx, "tidb.count_"+table)
	defer span.End()

	var n int64
	if err := tc.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		span.RecordError(err)
		return 0, unavailable("count "+table, err)
	}
	return n, nil
}

// CreateFile inserts a file node and sets its id
func (tc *TiDBClient) CreateFile(ctx context.Context, file *models.FileNode) error {
	ctx, span := tracer.Start(ctx, "tidb.create_file",
		trace.WithAttributes(
			attribute.String("file_name", file.Name),
			attribute.String("file_type", string(file.Kind)),
		),
	)
	defer span.End()

	if file.CreatedAt.IsZero() {
		file.CreatedAt = tc.now().UTC()
	}

	var storageRef sql.NullString
	if file.StorageRef != "" {
		storageRef = sql.NullString{String: file.StorageRef, Valid: true}
	}

	query := `INSERT INTO files (user_id, name, type, is_public, parent_id, storage_ref, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := tc.db.ExecContext(ctx, query,
		int64(file.OwnerID),
		file.Name,
		string(file.Kind),
		file.IsPublic,
		file.Parent.Storage(),
		storageRef,
		file.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return unavailable("insert file", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		span.RecordError(err)
		return unavailable("insert file", err)
	}
	file.ID = models.FileID(id)

	span.SetAttributes(attribute.Int64("file_id", id))
	return nil
}

const fileColumns = `id, user_id, name, type, is_public, parent_id, storage_ref, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.FileNode, error) {
	var (
		file       models.FileNode
		id, owner  int64
		kind       string
		parent     int64
		storageRef sql.NullString
	)
	if err := row.Scan(&id, &owner, &file.Name, &kind, &file.IsPublic, &parent, &storageRef, &file.CreatedAt); err != nil {
		return nil, err
	}
	file.ID = models.FileID(id)
	file.OwnerID = models.UserID(owner)
	file.Kind = models.Kind(kind)
	file.Parent = models.ParentFromStorage(parent)
	file.StorageRef = storageRef.String
	return &file, nil
}

// GetFile retrieves a file node by id; common.ErrNotFound when absent
func (tc *TiDBClient) GetFile(ctx context.Context, id models.FileID) (*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "tidb.get_file",
		trace.WithAttributes(attribute.Int64("file_id", int64(id))),
	)
	defer span.End()

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`

	file, err := scanFile(tc.db.QueryRowContext(ctx, query, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, common.ErrNotFound
	} else if err != nil {
		span.RecordError(err)
		return nil, unavailable("query file", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return file, nil
}

// ListFiles returns the owner's nodes under parent in insertion order
func (tc *TiDBClient) ListFiles(ctx context.Context, owner models.UserID, parent models.ParentRef, offset, limit int) ([]*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "tidb.list_files",
		trace.WithAttributes(
			attribute.Int64("user_id", int64(owner)),
			attribute.Int64("parent_id", parent.Storage()),
			attribute.Int("offset", offset),
		),
	)
	defer span.End()

	query := `SELECT ` + fileColumns + `
			  FROM files
			  WHERE user_id = ? AND parent_id = ?
			  ORDER BY id ASC
			  LIMIT ? OFFSET ?`

	rows, err := tc.db.QueryContext(ctx, query, int64(owner), parent.Storage(), limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, unavailable("query files", err)
	}
	defer rows.Close()

	files := []*models.FileNode{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			span.RecordError(err)
			return nil, unavailable("scan file", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, unavailable("iterate files", err)
	}

	span.SetAttributes(attribute.Int("file_count", len(files)))
	return files, nil
}

// SetFilePublic updates the visibility flag. Concurrent writers race and
// the last one wins.
func (tc *TiDBClient) SetFilePublic(ctx context.Context, id models.FileID, public bool) error {
	ctx, span := tracer.Start(ctx, "tidb.set_file_public",
		trace.WithAttributes(
			attribute.Int64("file_id", int64(id)),
			attribute.Bool("is_public", public),
		),
	)
	defer span.End()

	query := `UPDATE files SET is_public = ? WHERE id = ?`
	if _, err := tc.db.ExecContext(ctx, query, public, int64(id)); err != nil {
		span.RecordError(err)
		return unavailable("update file", err)
	}
	return nil
}
