// Package journal persists received carrier webhook events in an embedded
// badger store so operators can inspect recent deliveries.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const keyPrefix = "webhook/"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("journal closed")

// Event is one received webhook delivery.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Action     string          `json:"action"`
	ParcelID   int64           `json:"parcel_id,omitempty"`
	StatusID   int             `json:"status_id,omitempty"`
	Outcome    string          `json:"outcome,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Store is a badger-backed event journal.
type Store struct {
	db     *badger.DB
	logger *otelzap.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens the journal at path. With inMemory set the path is ignored and
// nothing is written to disk.
func Open(path string, inMemory bool, logger *otelzap.Logger) (*Store, error) {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}

	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logger.Logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Append stores an event. A zero ID or ReceivedAt is filled in.
func (s *Store) Append(e Event) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Event{}, ErrClosed
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}

	val, err := json.Marshal(e)
	if err != nil {
		return Event{}, fmt.Errorf("encoding event: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(e), val)
	})
	if err != nil {
		return Event{}, fmt.Errorf("writing event: %w", err)
	}
	return e, nil
}

// Get returns one event by id.
func (s *Store) Get(id uuid.UUID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var found *Event
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		suffix := "/" + id.String()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if len(key) < len(suffix) || string(key[len(key)-len(suffix):]) != suffix {
				continue
			}
			return it.Item().Value(func(val []byte) error {
				var e Event
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				found = &e
				return nil
			})
		}
		return badger.ErrKeyNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns every event.
func (s *Store) Recent(limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	events := make([]Event, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last key at or before the seek key.
		seek := append([]byte(keyPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			if limit > 0 && len(events) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var e Event
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				events = append(events, e)
				return nil
			})
			if err != nil {
				s.logger.Warn("Skipping unreadable journal entry",
					zap.ByteString("key", it.Item().KeyCopy(nil)),
					zap.Error(err),
				)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return events, nil
}

// Close flushes and closes the underlying store. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Keys sort by receive time, then id.
func eventKey(e Event) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", keyPrefix, e.ReceivedAt.UnixNano(), e.ID))
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }
