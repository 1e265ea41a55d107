// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package store persists chat messages and known identities in BadgerDB.
//
// It backs the two synchronous collaborators the chat handlers call: a
// MessageStore that saves each message before it is relayed and a Directory
// that answers whether an identity exists as a direct-message target.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/relaychat/internal/logging"
)

// Key prefixes.
const (
	messageKeyPrefix = "msg:"
	userKeyPrefix    = "user:"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: not found")

// Config configures the database.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

// DB wraps a Badger database.
type DB struct {
	db *badger.DB
}

// Open opens or creates the database.
func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store: path is required unless in-memory")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(newBadgerLogger())

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Messages returns the message store.
func (d *DB) Messages() *MessageStore {
	return &MessageStore{db: d.db}
}

// Directory returns the identity directory.
func (d *DB) Directory() *Directory {
	return &Directory{db: d.db}
}

// badgerLogger routes Badger's printf-style logs into zerolog. Info and
// debug output is demoted one level; Badger is chatty at startup.
type badgerLogger struct {
	logger zerolog.Logger
}

func newBadgerLogger() *badgerLogger {
	return &badgerLogger{logger: logging.WithComponent("badger")}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}
