package ci

import (
	"context"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/zeebo/xxh3"

	"github.com/goliatone/go-cms-ci/internal/identity"
)

// FileRecord remembers where a unit was written and what it contained.
type FileRecord struct {
	bun.BaseModel `bun:"table:ci_file_metadata,alias:cfm"`

	ID        uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	Kind      ObjectKind `bun:"kind,notnull" json:"kind"`
	SiteID    uuid.UUID  `bun:"site_id,notnull,type:uuid" json:"site_id"`
	NodeID    uuid.UUID  `bun:"node_id,notnull,type:uuid" json:"node_id"`
	Culture   string     `bun:"culture,notnull" json:"culture"`
	Location  string     `bun:"location,notnull,unique" json:"location"`
	Hash      string     `bun:"hash,notnull" json:"hash"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// RecordID is the key of the record tracking one unit of a node. ACL
// units use an empty culture.
func RecordID(kind ObjectKind, nodeID uuid.UUID, culture string) uuid.UUID {
	return identity.UUID("ci-unit:" + string(kind) + ":" + nodeID.String() + ":" + culture)
}

// Hash fingerprints unit content.
func Hash(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// MetadataStore persists FileRecords.
type MetadataStore struct {
	db   bun.IDB
	repo repository.Repository[*FileRecord]
}

// NewMetadataStore returns a store over db.
func NewMetadataStore(db *bun.DB) *MetadataStore {
	return &MetadataStore{
		db: db,
		repo: repository.MustNewRepository(db, repository.ModelHandlers[*FileRecord]{
			NewRecord: func() *FileRecord { return &FileRecord{} },
			GetID: func(r *FileRecord) uuid.UUID {
				return r.ID
			},
			SetID: func(r *FileRecord, id uuid.UUID) {
				r.ID = id
			},
			GetIdentifier: func() string {
				return "location"
			},
			GetIdentifierValue: func(r *FileRecord) string {
				return r.Location
			},
		}),
	}
}

// Get returns the record with id, or nil when there is none.
func (m *MetadataStore) Get(ctx context.Context, id uuid.UUID) (*FileRecord, error) {
	records, _, err := m.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.id = ?", id)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("ci: load file record: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// ByLocation returns the record of the unit at location, or nil.
func (m *MetadataStore) ByLocation(ctx context.Context, location string) (*FileRecord, error) {
	records, _, err := m.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.location = ?", location)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("ci: load file record %s: %w", location, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// ListByNodes returns the records of every unit of nodeIDs.
func (m *MetadataStore) ListByNodes(ctx context.Context, nodeIDs []uuid.UUID) ([]*FileRecord, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	records, _, err := m.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.node_id IN (?)", bun.In(nodeIDs)).OrderExpr("?TableAlias.location ASC")
	}), repository.SelectPaginate(0, 0))
	if err != nil {
		return nil, fmt.Errorf("ci: list file records: %w", err)
	}
	return records, nil
}

// ListBySite returns the records of a site, or of every site for uuid.Nil.
func (m *MetadataStore) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*FileRecord, error) {
	records, _, err := m.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		if siteID != uuid.Nil {
			q = q.Where("?TableAlias.site_id = ?", siteID)
		}
		return q.OrderExpr("?TableAlias.location ASC")
	}), repository.SelectPaginate(0, 0))
	if err != nil {
		return nil, fmt.Errorf("ci: list file records: %w", err)
	}
	return records, nil
}

// Save inserts or replaces record.
func (m *MetadataStore) Save(ctx context.Context, record *FileRecord) error {
	_, err := m.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("location = EXCLUDED.location").
		Set("hash = EXCLUDED.hash").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ci: save file record %s: %w", record.Location, err)
	}
	return nil
}

// Delete removes record.
func (m *MetadataStore) Delete(ctx context.Context, record *FileRecord) error {
	if err := m.repo.Delete(ctx, record); err != nil {
		return fmt.Errorf("ci: delete file record %s: %w", record.Location, err)
	}
	return nil
}

// EnsureSchema creates the ci_file_metadata table.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*FileRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("ci: create ci_file_metadata: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*FileRecord)(nil)).
		Index("ci_file_metadata_node_idx").
		Column("node_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("ci: create ci_file_metadata index: %w", err)
	}
	return nil
}
