package fuzzy

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/clipvault/core/internal/clipvaulterrors"
)

// snapshotVersion is bumped whenever the gob payload shape changes; a
// mismatch (or a missing/mismatched sidecar checksum) means the snapshot is
// discarded and the index rebuilds from Store instead of trusting stale or
// corrupt bytes.
const snapshotVersion = 2

const snapshotMagic = "CVFZ"

// FullSnapshotName and ShortSnapshotName are the on-disk file names spec §6
// assigns each index's cache, kept beside clipboard.db.
const (
	FullSnapshotName  = "clipboard.db.fullindex.v2.plist"
	ShortSnapshotName = "clipboard.db.shortindex.v2.plist"
)

type snapshotPayload struct {
	Magic   string
	Version int
	Slots   []Slot
}

// saveSnapshot gob-encodes slots, writes the payload via the same
// atomic-rename discipline Store uses for blobs, and writes a SHA-256
// sidecar so a load can detect a torn or corrupted file before trusting it.
func saveSnapshot(path string, slots []Slot) error {
	payload := snapshotPayload{Magic: snapshotMagic, Version: snapshotVersion, Slots: slots}

	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())

	if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := atomic.WriteFile(path+".sha256", strings.NewReader(hex.EncodeToString(sum[:]))); err != nil {
		return fmt.Errorf("write snapshot checksum: %w", err)
	}

	return nil
}

// loadSnapshot reads and validates a snapshot written by saveSnapshot,
// returning clipvaulterrors.ErrSnapshotCorrupt if the checksum doesn't match
// or the header doesn't match this build's expected magic/version.
func loadSnapshot(path string) ([]Slot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	wantSum, err := os.ReadFile(path + ".sha256")
	if err != nil {
		return nil, fmt.Errorf("read snapshot checksum: %w", err)
	}

	gotSum := sha256.Sum256(data)
	if hex.EncodeToString(gotSum[:]) != strings.TrimSpace(string(wantSum)) {
		return nil, clipvaulterrors.ErrSnapshotCorrupt
	}

	var payload snapshotPayload

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", clipvaulterrors.ErrSnapshotCorrupt, err)
	}

	if payload.Magic != snapshotMagic || payload.Version != snapshotVersion {
		return nil, clipvaulterrors.ErrSnapshotCorrupt
	}

	return payload.Slots, nil
}

// FullSnapshotPath and ShortSnapshotPath derive each index's snapshot path
// (and implicitly its ".sha256" sidecar) from the database directory.
func FullSnapshotPath(dbDir string) string {
	return filepath.Join(dbDir, FullSnapshotName)
}

func ShortSnapshotPath(dbDir string) string {
	return filepath.Join(dbDir, ShortSnapshotName)
}
