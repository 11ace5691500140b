package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// keySeparator sits between the room name and the timestamp inside a key.
// A NUL byte keeps rooms whose names share a prefix from bleeding into each
// other's scans.
const keySeparator = "\x00"

// BadgerStore keeps messages in BadgerDB.
//
// Keys are formatted as "msg:{room}\x00{timestamp_padded}:{uuid}" so that:
//  1. A prefix scan per room yields messages in chronological order thanks
//     to the 19-digit zero-padded nanosecond timestamp.
//  2. The trailing UUID disambiguates two messages landing on the same
//     nanosecond.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens (or creates) a BadgerStore at path. An empty path opens an
// in-memory database, which is what the tests use.
func Open(path string, log *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening message store: %w", err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func messageKey(room string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s%s%019d:%s", room, keySeparator, at.UnixNano(), id))
}

func roomPrefix(room string) []byte {
	return []byte("msg:" + room + keySeparator)
}

// Append persists one message. A zero ID or timestamp is filled in here so
// callers only have to provide the wire-level fields.
func (s *BadgerStore) Append(msg ChatMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	key := messageKey(msg.Room, msg.Timestamp, msg.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// ListByRoom returns every stored message for a room, oldest first. An
// unknown room yields an empty slice, not an error.
func (s *BadgerStore) ListByRoom(room string) ([]ChatMessage, error) {
	var messages []ChatMessage
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var msg ChatMessage
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteByUser removes every message a user has ever sent, across all
// rooms, and reports how many were deleted. Keys are collected under a read
// transaction first so the scan never holds up writers.
func (s *BadgerStore) DeleteByUser(username string) (int, error) {
	var doomed [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				var msg ChatMessage
				if err := json.Unmarshal(value, &msg); err != nil {
					// Undecodable entries are not attributable to the user;
					// leave them in place.
					s.log.Warn("skipping undecodable message entry", "key", redactKey(item.Key()), "err", err)
					return nil
				}
				if msg.Username == username {
					doomed = append(doomed, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(doomed) == 0 {
		return 0, nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(doomed), nil
}

func redactKey(key []byte) string {
	return strings.ReplaceAll(string(key), keySeparator, "/")
}
