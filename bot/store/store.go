// Package store implements the friend record store on Postgres via bun.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/ykravets/friendbook/bot/contract"
)

const scanPageSize = 100

type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"4"`
}

// FriendRow is the bun model for the friends table.
type FriendRow struct {
	bun.BaseModel `bun:"table:friends"`

	ID                    string `bun:"friend_id,pk"`
	Name                  string `bun:"name,notnull"`
	Profession            string `bun:"profession,notnull"`
	ProfessionDescription string `bun:"profession_description,notnull"`
	BlobKey               string `bun:"blob_key,notnull"`
	PhotoURL              string `bun:"photo_url,notnull"`
}

// Store implements contract.RecordStore.
type Store struct {
	db      *bun.DB
	timeout time.Duration
}

var _ contractx.RecordStore = (*Store)(nil)

// New opens a Postgres connection for cfg.DSN and ensures the friends table
// exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())

	s := NewWithDB(db, cfg.Timeout)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := db.NewCreateTable().Model((*FriendRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: create friends table: %v", contractx.ErrStore, err)
	}

	return s, nil
}

// NewWithDB wraps an existing bun.DB. Used by tests and by callers that
// manage the connection themselves.
func NewWithDB(db *bun.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

func (s *Store) Put(ctx context.Context, f contractx.Friend) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := rowFromFriend(f)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: put friend %s: %v", contractx.ErrStore, f.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (contractx.Friend, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row FriendRow
	err := s.db.NewSelect().Model(&row).Where("friend_id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.Friend{}, fmt.Errorf("%w: %s", contractx.ErrNotFound, id)
	}
	if err != nil {
		return contractx.Friend{}, fmt.Errorf("%w: get friend %s: %v", contractx.ErrStore, id, err)
	}
	return row.toFriend(), nil
}

// Scan pages through the whole table with a keyset cursor and returns every
// record present at scan start.
func (s *Store) Scan(ctx context.Context) ([]contractx.Friend, error) {
	var out []contractx.Friend
	cursor := ""

	for {
		rows, err := s.scanPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out = append(out, row.toFriend())
		}
		if len(rows) < scanPageSize {
			return out, nil
		}
		cursor = rows[len(rows)-1].ID
	}
}

func (s *Store) scanPage(ctx context.Context, cursor string) ([]FriendRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []FriendRow
	q := s.db.NewSelect().Model(&rows).Order("friend_id ASC").Limit(scanPageSize)
	if cursor != "" {
		q = q.Where("friend_id > ?", cursor)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: scan friends: %v", contractx.ErrStore, err)
	}
	return rows, nil
}

// Delete removes the row for id. A missing row is success.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NewDelete().Model((*FriendRow)(nil)).Where("friend_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete friend %s: %v", contractx.ErrStore, id, err)
	}
	return nil
}

func rowFromFriend(f contractx.Friend) FriendRow {
	return FriendRow{
		ID:                    f.ID,
		Name:                  f.Name,
		Profession:            f.Profession,
		ProfessionDescription: f.ProfessionDescription,
		BlobKey:               f.BlobKey,
		PhotoURL:              f.PhotoURL,
	}
}

func (r FriendRow) toFriend() contractx.Friend {
	return contractx.Friend{
		ID:                    r.ID,
		Name:                  r.Name,
		Profession:            r.Profession,
		ProfessionDescription: r.ProfessionDescription,
		BlobKey:               r.BlobKey,
		PhotoURL:              r.PhotoURL,
	}
}
