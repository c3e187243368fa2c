package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/database/migrations"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/store"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// DocumentRow is the single table every collection is stored in.
type DocumentRow struct {
	Collection string         `gorm:"primaryKey;size:64;index:idx_documents_owner_ts,priority:1"`
	ID         string         `gorm:"primaryKey;size:255"`
	OwnerID    string         `gorm:"size:255;not null;index:idx_documents_owner_ts,priority:2"`
	Timestamp  time.Time      `gorm:"not null;index:idx_documents_owner_ts,priority:3"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (DocumentRow) TableName() string {
	return "documents"
}

// GormStore implements store.Store on a relational database through gorm.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&DocumentRow{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	m := migrations.New()
	if err := m.LoadSQL(migrations.Files); err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := m.Run(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established and migrations completed", "driver", "postgres")
	return db, nil
}

// NewGormStore wraps an open connection. The documents table must exist.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var row DocumentRow
	err := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc := fromRow(row)
	return &doc, nil
}

func (s *GormStore) Put(ctx context.Context, collection string, doc store.Document) error {
	row := toRow(collection, doc)
	return s.db.WithContext(ctx).Clauses(upsertClause).Create(&row).Error
}

func (s *GormStore) BatchPut(ctx context.Context, writes []store.Write) error {
	writes = store.DedupeWrites(writes)
	if len(writes) == 0 {
		return nil
	}
	rows := make([]DocumentRow, 0, len(writes))
	for _, w := range writes {
		rows = append(rows, toRow(w.Collection, w.Doc))
	}
	return s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.(*GormStore).db.WithContext(ctx).Clauses(upsertClause).CreateInBatches(rows, 200).Error
	})
}

func (s *GormStore) Delete(ctx context.Context, collection, id string) error {
	return s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).Delete(&DocumentRow{}).Error
}

func (s *GormStore) BatchDelete(ctx context.Context, keys []store.Key) error {
	byCollection := groupKeys(keys)
	if len(byCollection) == 0 {
		return nil
	}
	return s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		db := tx.(*GormStore).db.WithContext(ctx)
		for collection, ids := range byCollection {
			if err := db.Where("collection = ? AND id IN ?", collection, ids).Delete(&DocumentRow{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) Find(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	var rows []DocumentRow
	if err := s.findQuery(ctx, collection, q).Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, fromRow(row))
	}
	return docs, nil
}

// findQuery builds the select for q without running it.
func (s *GormStore) findQuery(ctx context.Context, collection string, q store.Query) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&DocumentRow{}).Where("collection = ?", collection)
	if q.OwnerID != "" {
		db = db.Where("owner_id = ?", q.OwnerID)
	}
	if q.At != nil {
		db = db.Where("timestamp = ?", q.At.UTC())
	} else {
		if q.From != nil {
			db = db.Where("timestamp >= ?", q.From.UTC())
		}
		if q.To != nil {
			db = db.Where("timestamp <= ?", q.To.UTC())
		}
	}

	order := "timestamp DESC, id DESC"
	if q.Order == store.Ascending {
		order = "timestamp ASC, id ASC"
	}
	if q.After != nil {
		ts := q.After.Timestamp.UTC()
		if q.Order == store.Ascending {
			db = db.Where("(timestamp > ? OR (timestamp = ? AND id > ?))", ts, ts, q.After.ID)
		} else {
			db = db.Where("(timestamp < ? OR (timestamp = ? AND id < ?))", ts, ts, q.After.ID)
		}
	}
	db = db.Order(order)
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db
}

func (s *GormStore) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &GormStore{db: tx, inTx: true})
	})
}

func (s *GormStore) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var upsertClause = clause.OnConflict{
	Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
	DoUpdates: clause.AssignmentColumns([]string{"owner_id", "timestamp", "data", "updated_at"}),
}

func toRow(collection string, doc store.Document) DocumentRow {
	return DocumentRow{
		Collection: collection,
		ID:         doc.ID,
		OwnerID:    doc.OwnerID,
		Timestamp:  doc.Timestamp.UTC(),
		Data:       datatypes.JSON(doc.Data),
	}
}

func fromRow(row DocumentRow) store.Document {
	return store.Document{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Timestamp: row.Timestamp.UTC(),
		Data:      []byte(row.Data),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func groupKeys(keys []store.Key) map[string][]string {
	out := make(map[string][]string)
	for _, k := range keys {
		out[k.Collection] = append(out[k.Collection], k.ID)
	}
	return out
}
