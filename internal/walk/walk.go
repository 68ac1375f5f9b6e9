// Package walk drives CDB directory traversal: discovering GeoCell
// directories, then dataset directories within each, and invoking a
// per-dataset-file callback — the directory-structure counterpart to
// internal/geocell and internal/dataset's naming logic.
package walk

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/geocell"
	"github.com/cesiumgs/cdb2tiles/internal/tile"
)

// FileVisitor is invoked for every CDB payload file discovered under a
// dataset directory, with its parsed tile identity.
type FileVisitor func(absPath string, t tile.Tile) error

// Root walks root/Tiles/<lat>/<lon>/<dataset>/... and invokes visit for
// every file whose name parses as a valid tile filename. Malformed
// filenames are skipped (ParseFailure is recoverable per spec.md §7),
// not treated as fatal.
func Root(root string, visit FileVisitor) error {
	tilesDir := filepath.Join(root, "Tiles")
	latEntries, err := os.ReadDir(tilesDir)
	if err != nil {
		return cdberrors.Wrap(cdberrors.IOError, "read Tiles directory", err)
	}

	for _, latEntry := range latEntries {
		if !latEntry.IsDir() {
			continue
		}
		if _, ok := geocell.ParseLatFromFilename(latEntry.Name()); !ok {
			continue
		}
		latPath := filepath.Join(tilesDir, latEntry.Name())
		lonEntries, err := os.ReadDir(latPath)
		if err != nil {
			return cdberrors.Wrap(cdberrors.IOError, "read latitude directory "+latPath, err)
		}
		for _, lonEntry := range lonEntries {
			if !lonEntry.IsDir() {
				continue
			}
			if _, ok := geocell.ParseLonFromFilename(lonEntry.Name()); !ok {
				continue
			}
			if err := walkGeoCellDir(filepath.Join(latPath, lonEntry.Name()), visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func walkGeoCellDir(geoCellDir string, visit FileVisitor) error {
	return filepath.WalkDir(geoCellDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return cdberrors.Wrap(cdberrors.IOError, "walk "+p, err)
		}
		if d.IsDir() {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		t, ok := tile.FromFilename(stem)
		if !ok {
			return nil
		}
		return visit(p, t)
	})
}
