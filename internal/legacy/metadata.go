package legacy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Legacy metadata file names, looked for at the document root. They predate
// the cache store: category state, pinned paths and per-note properties
// used to live in flat JSON files beside the notes themselves.
const (
	categoriesFile   = "categories.json"
	pinnedItemsFile  = "pinned_items.json"
	noteMetadataFile = "note_metadata.json"
)

// legacyCategory is one entry of categories.json.
type legacyCategory struct {
	Name      string `json:"name"`
	Expanded  bool   `json:"expanded"`
	SortOrder int    `json:"sortOrder"`
}

// metadata holds everything recovered from the legacy flat files. Missing
// files are not an error; each field is simply empty.
type metadata struct {
	Categories     []legacyCategory
	PinnedPaths    []string
	NoteProperties map[string]map[string]string

	// SourceFiles lists the legacy files actually found, for the
	// post-migration safety copy.
	SourceFiles []string
}

// loadMetadata reads whichever legacy flat files exist at root. A file that
// exists but cannot be parsed is an error; migration must not silently
// ignore metadata it was asked to preserve.
func loadMetadata(root string) (*metadata, error) {
	md := &metadata{NoteProperties: map[string]map[string]string{}}

	catPath := filepath.Join(root, categoriesFile)
	if found, err := readJSONFile(catPath, &md.Categories); err != nil {
		return nil, err
	} else if found {
		md.SourceFiles = append(md.SourceFiles, catPath)
	}

	pinPath := filepath.Join(root, pinnedItemsFile)
	if found, err := readJSONFile(pinPath, &md.PinnedPaths); err != nil {
		return nil, err
	} else if found {
		md.SourceFiles = append(md.SourceFiles, pinPath)
	}

	notePath := filepath.Join(root, noteMetadataFile)
	if found, err := readJSONFile(notePath, &md.NoteProperties); err != nil {
		return nil, err
	} else if found {
		md.SourceFiles = append(md.SourceFiles, notePath)
	}

	return md, nil
}

// readJSONFile decodes path into v. Returns found=false when the file does
// not exist.
func readJSONFile(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}

// itemCount returns the number of legacy metadata entries across all files.
func (md *metadata) itemCount() int {
	return len(md.Categories) + len(md.PinnedPaths) + len(md.NoteProperties)
}
