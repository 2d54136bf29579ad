package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"snapscan/internal"
	"snapscan/internal/storage"
)

// SlipStore keeps raw messages on disk, named by content hash, and tracks
// them in the slips table. A message seen before keeps its status.
type SlipStore struct {
	db     *storage.DB
	rawDir string
}

func NewSlipStore(db *storage.DB, rawDir string) *SlipStore {
	return &SlipStore{db: db, rawDir: rawDir}
}

func (s *SlipStore) Store(msg internal.FetchedMailMessage) (internal.SlipRow, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawDir, 0o755); err != nil {
		return internal.SlipRow{}, err
	}

	rawPath := filepath.Join(s.rawDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.SlipRow{}, err
		}
	}

	return s.db.UpsertSlip(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
}
