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
)

// User is a directory entry.
type User struct {
	Identity  string    `json:"identity"`
	FirstSeen time.Time `json:"firstSeen"`
}

// Directory records identities that have ever authenticated.
type Directory struct {
	db *badger.DB
}

// Remember records identity. Repeated calls keep the first-seen time.
func (d *Directory) Remember(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if identity == "" {
		return errors.New("store: identity is required")
	}
	key := []byte(userKeyPrefix + identity)

	err := d.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("lookup user: %w", err)
		}
		data, err := json.Marshal(User{Identity: identity, FirstSeen: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		return txn.Set(key, data)
	})
	// A conflicting transaction wrote the same identity first.
	if errors.Is(err, badger.ErrConflict) {
		return nil
	}
	return err
}

// Exists reports whether identity was remembered.
func (d *Directory) Exists(ctx context.Context, identity string) (bool, error) {
	_, err := d.Get(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get loads a directory entry.
func (d *Directory) Get(ctx context.Context, identity string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user User
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKeyPrefix + identity))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
