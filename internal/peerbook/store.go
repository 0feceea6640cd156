package peerbook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"a2a/internal/bus"
)

// Store is the peer book.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the peer book at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create peerbook directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Remember records that peer was seen in topic at seenAt, replacing its
// addresses when any are given.
func (s *Store) Remember(ctx context.Context, topic bus.Topic, peer bus.PeerAddr, seenAt time.Time) error {
	addrs := peer.Addrs
	if addrs == nil {
		addrs = []string{}
	}
	addrsJSON, err := json.Marshal(addrs)
	if err != nil {
		return fmt.Errorf("marshal addrs: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO peers (topic, peer_id, addrs_json, last_seen) VALUES (?, ?, ?, ?)
         ON CONFLICT(topic, peer_id) DO UPDATE SET
            last_seen = MAX(last_seen, excluded.last_seen),
            addrs_json = CASE WHEN excluded.addrs_json = '[]' THEN addrs_json ELSE excluded.addrs_json END`,
		topic.String(),
		peer.ID.String(),
		string(addrsJSON),
		seenAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("remember peer %s: %w", peer.ID.Short(), err)
	}
	return nil
}

// Bootstrap returns up to limit peers of topic with at least one address,
// most recently seen first.
func (s *Store) Bootstrap(ctx context.Context, topic bus.Topic, limit int) ([]bus.PeerAddr, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT peer_id, addrs_json FROM peers
         WHERE topic = ? AND addrs_json != '[]'
         ORDER BY last_seen DESC
         LIMIT ?`,
		topic.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query peers: %w", err)
	}
	defer rows.Close()

	var peers []bus.PeerAddr
	for rows.Next() {
		var idHex, addrsJSON string
		if err := rows.Scan(&idHex, &addrsJSON); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		id, err := bus.ParsePeerID(idHex)
		if err != nil {
			continue
		}
		var addrs []string
		if err := json.Unmarshal([]byte(addrsJSON), &addrs); err != nil || len(addrs) == 0 {
			continue
		}
		peers = append(peers, bus.PeerAddr{ID: id, Addrs: addrs})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peers: %w", err)
	}
	return peers, nil
}

// Forget removes a peer from topic.
func (s *Store) Forget(ctx context.Context, topic bus.Topic, id bus.PeerID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM peers WHERE topic = ? AND peer_id = ?", topic.String(), id.String()); err != nil {
		return fmt.Errorf("forget peer %s: %w", id.Short(), err)
	}
	return nil
}
