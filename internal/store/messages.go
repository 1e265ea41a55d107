// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/relaychat/internal/metrics"
	"github.com/tomtom215/relaychat/internal/models"
)

// StoredMessage is a persisted chat message.
type StoredMessage struct {
	ID       string              `json:"id"`
	StoredAt time.Time           `json:"storedAt"`
	Message  *models.ChatMessage `json:"message"`
}

// MessageStore saves chat messages.
type MessageStore struct {
	db *badger.DB
}

// Save persists msg and returns its generated ID.
func (s *MessageStore) Save(ctx context.Context, msg *models.ChatMessage) (id string, err error) {
	defer func() { metrics.RecordMessageStored(err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if msg == nil {
		return "", errors.New("store: nil message")
	}

	record := StoredMessage{
		ID:       uuid.NewString(),
		StoredAt: time.Now().UTC(),
		Message:  msg,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(messageKeyPrefix+record.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("save message: %w", err)
	}
	return record.ID, nil
}

// Get loads a message by ID.
func (s *MessageStore) Get(ctx context.Context, id string) (*StoredMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record StoredMessage
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(messageKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get message: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Count returns the number of stored messages.
func (s *MessageStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(messageKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
