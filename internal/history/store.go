// Package history persists explained predictions per user in BadgerDB.
package history

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dgallion1/aquasens/internal/decisionpath"
	"github.com/dgallion1/aquasens/internal/recommend"
)

const (
	predictionKeyPrefix = "prediction:"
	userKeyPrefix       = "user_prediction:"
)

var ErrNotFound = errors.New("prediction not found")

// Prediction is a stored, explained prediction.
type Prediction struct {
	ID             string                   `json:"id"`
	UserID         string                   `json:"user_id"`
	Input          map[string]any           `json:"input"`
	Result         recommend.Level          `json:"result"`
	DecisionPath   []decisionpath.Step      `json:"decision_path"`
	Recommendation recommend.Recommendation `json:"recommendation"`
	CreatedAt      time.Time                `json:"created_at"`
}

// Item is the summary row returned when listing a user's history.
type Item struct {
	ID     string          `json:"id"`
	Date   time.Time       `json:"date"`
	Crop   any             `json:"crop"`
	Soil   any             `json:"soil"`
	Result recommend.Level `json:"result"`
}

// Summary returns the listing row for p.
func (p *Prediction) Summary() Item {
	return Item{
		ID:     p.ID,
		Date:   p.CreatedAt,
		Crop:   p.Input["Crop_Type"],
		Soil:   p.Input["Soil_Type"],
		Result: p.Result,
	}
}

// Store is a BadgerDB-backed prediction history.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) a store under dir. An empty dir opens an in-memory store.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return New(db), nil
}

// New wraps an already open database.
func New(db *badger.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying database so other stores can share it.
func (s *Store) DB() *badger.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save assigns p an ID and creation time when missing and stores it.
func (s *Store) Save(ctx context.Context, p *Prediction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(predictionKeyPrefix+p.ID), data); err != nil {
			return fmt.Errorf("set prediction: %w", err)
		}
		if err := txn.Set(userKey(p.UserID, p.CreatedAt, p.ID), []byte(p.ID)); err != nil {
			return fmt.Errorf("set user index: %w", err)
		}
		return nil
	})
}

// Get returns the prediction with id.
func (s *Store) Get(ctx context.Context, id string) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p Prediction
	err := s.db.View(func(txn *badger.Txn) error {
		return getPrediction(txn, id, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser returns up to limit predictions of userID, newest first.
// A limit <= 0 returns all of them.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]*Prediction, error) {
	out := []*Prediction{}
	prefix := userPrefix(userID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the largest key under the prefix.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var id string
			if err := it.Item().Value(func(v []byte) error {
				id = string(v)
				return nil
			}); err != nil {
				return err
			}
			var p Prediction
			if err := getPrediction(txn, id, &p); err != nil {
				return err
			}
			out = append(out, &p)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a prediction and its user index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(predictionKeyPrefix + id)); err != nil {
			return err
		}
		return txn.Delete(userKey(p.UserID, p.CreatedAt, p.ID))
	})
}

func getPrediction(txn *badger.Txn, id string, p *Prediction) error {
	item, err := txn.Get([]byte(predictionKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("get prediction: %w", err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, p)
	})
}

// userPrefix scopes the index to one user. The ID is length-prefixed so
// that no user's prefix is a prefix of another's ("a" vs "a:b").
func userPrefix(userID string) []byte {
	key := make([]byte, 0, len(userKeyPrefix)+binary.MaxVarintLen64+len(userID)+1)
	key = append(key, userKeyPrefix...)
	key = binary.AppendUvarint(key, uint64(len(userID)))
	key = append(key, userID...)
	return append(key, ':')
}

// userKey sorts by creation time within a user: prefix, big-endian nanos, id.
func userKey(userID string, at time.Time, id string) []byte {
	key := userPrefix(userID)
	nanos := at.UnixNano()
	if nanos < 0 {
		nanos = 0
	}
	key = binary.BigEndian.AppendUint64(key, uint64(nanos))
	key = append(key, ':')
	key = append(key, id...)
	return key
}
