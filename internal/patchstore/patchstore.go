// Package patchstore is the Patch Store of spec.md §4.7: durable,
// last-writer-wins per-team patch files on disk.
//
// Grounded on original_source/backend's patches/<team_id>_app.py naming
// convention (app.py's patch upload route) and on the teacher's habit of
// wrapping plain os/filepath calls behind a small typed store rather than
// scattering path-building logic across handlers.
package patchstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/adctf/orchestrator/internal/apierr"
)

// Metadata describes one stored patch for the list endpoint.
type Metadata struct {
	TeamID   int
	TeamName string
	Size     int64
	ModTime  int64 // unix seconds
}

// Store is a directory of patch files, one per team.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create patch directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(teamID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_app.py", teamID))
}

// Upload writes data as team's patch, overwriting any previous one.
// filename must end in ".py" (spec.md §4.7); the stored name is always
// the canonical "<team_id>_app.py" regardless of the uploaded filename.
func (s *Store) Upload(teamID int, filename string, data []byte) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".py") {
		return apierr.BadRequestf("patch file must have a .py extension")
	}
	if err := os.WriteFile(s.path(teamID), data, 0o644); err != nil {
		return fmt.Errorf("write patch for team %d: %w", teamID, err)
	}
	return nil
}

// Fetch returns a team's stored patch bytes, or apierr.NotFound.
func (s *Store) Fetch(teamID int) ([]byte, error) {
	data, err := os.ReadFile(s.path(teamID))
	if os.IsNotExist(err) {
		return nil, apierr.NotFoundf("no patch uploaded for team %d", teamID)
	}
	if err != nil {
		return nil, fmt.Errorf("read patch for team %d: %w", teamID, err)
	}
	return data, nil
}

// List returns metadata for every stored patch, sorted by team id.
func (s *Store) List(teamNames map[int]string) ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list patches in %s: %w", s.dir, err)
	}

	var out []Metadata
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		idPart, ok := strings.CutSuffix(name, "_app.py")
		if !ok {
			continue
		}
		teamID, err := strconv.Atoi(idPart)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Metadata{
			TeamID:   teamID,
			TeamName: teamNames[teamID],
			Size:     info.Size(),
			ModTime:  info.ModTime().Unix(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}
