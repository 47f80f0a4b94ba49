// Package sqldb implements remote.Gateway directly on a SQL database through
// gorm. Every collection is a document table holding the JSON document next
// to its key and owner columns.
package sqldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
)

// Supported drivers.
const (
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"
	DriverSQLServer = "sqlserver"
)

// Document is one row of a collection table.
type Document struct {
	ID        string         `gorm:"primaryKey;size:191"`
	OwnerID   string         `gorm:"size:191;not null;default:''"`
	Payload   datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// Options configures the connection.
type Options struct {
	Driver string // postgres, mysql, sqlite or sqlserver
	DSN    string
	Debug  bool // Log every statement
	Logger *slog.Logger
}

// Gateway is a remote.Gateway over a gorm connection.
type Gateway struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ remote.Gateway = (*Gateway)(nil)

// Open prepares the connection pool. Nothing is dialed until the first query,
// so a database that is down at startup surfaces through Probe instead of
// failing here. It does not create any tables; see Migrate.
func Open(opts Options) (*Gateway, error) {
	dialector, err := dialectorFor(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	level := logger.Silent
	if opts.Debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.Default.LogMode(level),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log.Info("remote database configured", "driver", opts.Driver)

	return &Gateway{db: db, logger: log}, nil
}

// New wraps an existing connection.
func New(db *gorm.DB, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Gateway{db: db, logger: log}
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, fmt.Errorf("remote database DSN is required")
	}
	switch driver {
	case DriverPostgres, "postgresql":
		return postgres.Open(dsn), nil
	case DriverMySQL, "mariadb":
		// The server version query would dial the database.
		return gormmysql.New(gormmysql.Config{DSN: dsn, SkipInitializeWithVersion: true}), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	case DriverSQLServer, "mssql":
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// DB exposes the underlying connection.
func (g *Gateway) DB() *gorm.DB {
	return g.db
}

// Close closes the connection pool.
func (g *Gateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the document table and owner index of every collection.
// It is idempotent.
func (g *Gateway) Migrate(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		db := g.db.WithContext(ctx).Table(name)
		if err := db.AutoMigrate(&Document{}); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}

		idx := "idx_" + name + "_owner_id"
		if db.Migrator().HasIndex(&Document{}, idx) {
			continue
		}
		if err := g.db.WithContext(ctx).Exec(fmt.Sprintf("CREATE INDEX %s ON %s (owner_id)", idx, name)).Error; err != nil {
			return fmt.Errorf("index %s: %w", name, err)
		}
		g.logger.Info("created document table", "collection", name)
	}
	return nil
}

// FetchAll implements remote.Gateway. Conditions on the key and owner
// columns run in SQL; the rest, along with ordering, apply to the decoded
// documents.
func (g *Gateway) FetchAll(ctx context.Context, collection string, filter remote.Filter) ([]json.RawMessage, error) {
	q := g.db.WithContext(ctx).Table(collection)

	var rest []remote.Condition
	for _, cond := range filter.Where {
		switch cond.Field {
		case domain.KeyColumn(collection):
			q = q.Where("id = ?", cond.Value)
		case domain.OwnerColumn(collection):
			q = q.Where("owner_id = ?", cond.Value)
		default:
			rest = append(rest, cond)
		}
	}

	pushLimit := len(rest) == 0 && filter.OrderBy == ""
	if pushLimit && filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []Document
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, classify(collection, err)
	}

	docs := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, json.RawMessage(row.Payload))
	}

	post := remote.Filter{Where: rest, OrderBy: filter.OrderBy, Desc: filter.Desc}
	if !pushLimit {
		post.Limit = filter.Limit
	}
	return remote.Apply(docs, post), nil
}

// FetchOne implements remote.Gateway.
func (g *Gateway) FetchOne(ctx context.Context, collection, key string) (json.RawMessage, error) {
	var row Document
	err := g.db.WithContext(ctx).Table(collection).Where("id = ?", key).Take(&row).Error
	if err != nil {
		return nil, classify(collection, err)
	}
	return json.RawMessage(row.Payload), nil
}

// Upsert implements remote.Gateway. The owner column is taken from the
// document's owner field.
func (g *Gateway) Upsert(ctx context.Context, collection, key string, doc json.RawMessage) error {
	row := Document{
		ID:        key,
		Payload:   datatypes.JSON(doc),
		UpdatedAt: time.Now().UTC(),
	}
	if col := domain.OwnerColumn(collection); col != "" {
		row.OwnerID, _ = remote.Field(doc, col)
	}

	err := g.db.WithContext(ctx).Table(collection).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return classify(collection, err)
	}
	return nil
}

// Remove implements remote.Gateway.
func (g *Gateway) Remove(ctx context.Context, collection, key string) error {
	err := g.db.WithContext(ctx).Table(collection).Where("id = ?", key).Delete(&Document{}).Error
	if err != nil {
		return classify(collection, err)
	}
	return nil
}

// Probe implements remote.Gateway by counting profiles.
func (g *Gateway) Probe(ctx context.Context) error {
	var n int64
	if err := g.db.WithContext(ctx).Table(domain.CollectionProfiles).Count(&n).Error; err != nil {
		return classify(domain.CollectionProfiles, err)
	}
	return nil
}

func classify(collection string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainerrors.NotFoundf("%s row not found", collection)
	case isMissingRelation(err):
		return domainerrors.SchemaMissing(fmt.Sprintf("collection %q does not exist on the remote", collection)).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return domainerrors.RemoteUnavailablef("%s: query timed out", collection).WithCause(err)
	default:
		return domainerrors.RemoteUnavailablef("%s: query failed", collection).WithCause(err)
	}
}

// isMissingRelation recognises "table does not exist" across drivers.
func isMissingRelation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1146
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == 208
	}

	return strings.Contains(strings.ToLower(err.Error()), "no such table")
}
