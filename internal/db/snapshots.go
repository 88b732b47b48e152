package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoSnapshot indicates no snapshot has been written yet
var ErrNoSnapshot = errors.New("no snapshot stored")

// SaveSnapshot stores a snapshot blob and returns its id
func (db *DB) SaveSnapshot(data []byte) (string, error) {
	if data == nil {
		data = []byte{}
	}
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO snapshots (id, data) VALUES (?, ?)
	`, id, data)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recently saved snapshot blob
func (db *DB) LatestSnapshot() ([]byte, error) {
	var data []byte
	err := db.QueryRow(`
		SELECT data FROM snapshots ORDER BY seq DESC LIMIT 1
	`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

// SnapshotCount returns the number of stored snapshots
func (db *DB) SnapshotCount() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count)
	return count, err
}

// PruneSnapshots deletes all but the newest keep snapshots. keep < 1 is
// treated as 1 so the latest snapshot always survives.
func (db *DB) PruneSnapshots(keep int) error {
	if keep < 1 {
		keep = 1
	}
	_, err := db.Exec(`
		DELETE FROM snapshots WHERE seq NOT IN (
			SELECT seq FROM snapshots ORDER BY seq DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
