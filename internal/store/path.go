package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/clipvault/core/internal/clipvaulterrors"
)

// contentDirName is the fixed subdirectory external blobs live under,
// relative to the database directory (spec §6 database directory layout).
const contentDirName = "content"

// blobFileName derives the external blob filename for id. Non-image blobs
// get a ".bin" extension; images keep whatever extension the ingest
// collaborator reported (defaulting to "bin" if it didn't).
func blobFileName(id uuid.UUID, typ RecordType, ext string) string {
	if typ != TypeImage {
		return id.String() + ".bin"
	}

	if ext == "" {
		ext = "bin"
	}

	return id.String() + "." + strings.TrimPrefix(ext, ".")
}

// blobPath returns the absolute path an external blob for id should live at,
// and verifies it resolves under <db_dir>/content/ (invariant 4). Guards
// against "../" traversal in a caller-supplied extension.
func blobPath(dbDir string, id uuid.UUID, typ RecordType, ext string) (string, error) {
	contentDir := filepath.Join(dbDir, contentDirName)
	name := blobFileName(id, typ, ext)

	full := filepath.Join(contentDir, name)

	if err := requireUnderContentDir(dbDir, full); err != nil {
		return "", err
	}

	return full, nil
}

// requireUnderContentDir verifies that path, once cleaned, is contained
// within <dbDir>/content/. storage_ref values are always derived internally
// from blobPath, but every read path re-validates with this helper too, so a
// corrupted or hand-edited storage_ref can never cause a read/delete outside
// content/ (invariant 4, testable property "external path safety").
func requireUnderContentDir(dbDir, path string) error {
	contentDir := filepath.Clean(filepath.Join(dbDir, contentDirName))

	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(dbDir, clean)
		clean = filepath.Clean(clean)
	}

	rel, err := filepath.Rel(contentDir, clean)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", clipvaulterrors.ErrPathViolation, path, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q resolves outside %q", clipvaulterrors.ErrPathViolation, path, contentDir)
	}

	return nil
}
