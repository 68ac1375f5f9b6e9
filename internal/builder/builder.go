// Package builder orchestrates the conversion pipeline (§4.F): for
// every discovered CDB elevation tile, build its simplified mesh, look
// up (or synthesize, by walking ancestors) the imagery to drape over
// it, fill the holes left by missing sibling tiles the way the
// original's recursive addElevationToTileset/fillMissing*LODElevation
// does, insert every resulting tile into its dataset's Tileset, and
// write each b3dm/i3dm/cmpt payload plus, on Flush, every tileset.json
// and subtree blob. Vector and model-instance datasets are ingested
// directly (they need no hole-filling pass). Grounded on
// CDBTilesetBuilder.cpp in the original CDBTo3DTiles source.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/cesiumgs/cdb2tiles/internal/availability"
	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/dataset"
	"github.com/cesiumgs/cdb2tiles/internal/elevation"
	"github.com/cesiumgs/cdb2tiles/internal/geocell"
	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
	"github.com/cesiumgs/cdb2tiles/internal/gltfw"
	"github.com/cesiumgs/cdb2tiles/internal/manifest"
	"github.com/cesiumgs/cdb2tiles/internal/mesh"
	"github.com/cesiumgs/cdb2tiles/internal/model"
	"github.com/cesiumgs/cdb2tiles/internal/raster"
	"github.com/cesiumgs/cdb2tiles/internal/tile"
	"github.com/cesiumgs/cdb2tiles/internal/tilecontainer"
	"github.com/cesiumgs/cdb2tiles/internal/tileset"
	"github.com/cesiumgs/cdb2tiles/internal/vectoring"
)

// elevationThresholdIndices and elevationDecimateError mirror the
// original CDBTilesetBuilder's defaults (0.3, 0.01f): the simplifier's
// target index count is this fraction of the uniform grid mesh's own
// index count.
const (
	elevationThresholdIndices = 0.3
	elevationDecimateError    = 0.01
)

// treeKey identifies one (GeoCell, Dataset, CS1, CS2) tileset.
type treeKey struct {
	gc       geocell.GeoCell
	ds       dataset.Dataset
	cs1, cs2 int
}

// imageryKey identifies a co-located imagery tile by geocell/level/UREF/
// RREF only — imagery datasets carry their own independent CS_1/CS_2,
// so tile identity comparison for draping purposes ignores them.
type imageryKey struct {
	gc                geocell.GeoCell
	level, uref, rref int
}

func imageryKeyFor(t tile.Tile) imageryKey {
	return imageryKey{gc: t.GeoCell, level: t.Level, uref: t.UREF, rref: t.RREF}
}

// Builder holds every dataset's tileset tree plus the shared imagery
// dataset cache used for parent-walk draping, accumulating output
// across a whole CDB directory walk before Flush.
type Builder struct {
	log       *slog.Logger
	outputDir string
	useNext   bool
	imagery   *raster.DatasetCache
	combine   []string

	trees        map[treeKey]*tileset.Tileset
	availability map[treeKey]*availability.Store

	// elevationFiles/imageryFiles index every elevation/imagery payload
	// discovered during the walk, by tile identity — the oracle
	// fillMissingPositiveLODElevation/fillMissingNegativeLODElevation
	// need to know whether a sibling or child tile actually exists on
	// disk before deciding to synthesize it.
	elevationFiles map[tile.Tile]string
	imageryFiles   map[imageryKey]string

	// processedElevation guards against re-processing a tile reached
	// both as a real walked file and as a hole-filling synthesis target.
	processedElevation map[tile.Tile]bool
}

// New returns a Builder that writes its output under outputDir.
// combine names the dataset directories (if any) to additionally merge
// into a single root tileset.json on Flush.
func New(log *slog.Logger, outputDir string, useNext bool, combine []string) *Builder {
	return &Builder{
		log:                log,
		outputDir:          outputDir,
		useNext:            useNext,
		combine:            combine,
		imagery:            raster.NewDatasetCache(64),
		trees:              make(map[treeKey]*tileset.Tileset),
		availability:       make(map[treeKey]*availability.Store),
		elevationFiles:     make(map[tile.Tile]string),
		imageryFiles:       make(map[imageryKey]string),
		processedElevation: make(map[tile.Tile]bool),
	}
}

// AddElevationTile registers an elevation payload found during the
// walk. Building its mesh is deferred to ProcessElevation, which runs
// once every file in the tree is known — the hole-filling pass needs
// the complete elevation/imagery index to decide what is missing.
func (b *Builder) AddElevationTile(ctx context.Context, absPath string, t tile.Tile) error {
	b.elevationFiles[t] = absPath
	return nil
}

// AddImageryTile registers imagery for use by the elevation draping and
// hole-filling passes, validating the raster is readable via the shared
// GDAL dataset cache.
func (b *Builder) AddImageryTile(ctx context.Context, absPath string, t tile.Tile) error {
	if _, err := b.imagery.Get(absPath); err != nil {
		if cdberrors.Recoverable(err) {
			b.log.Warn("skipping unreadable imagery tile", "path", absPath, "err", err)
			return nil
		}
		return err
	}
	b.imageryFiles[imageryKeyFor(t)] = absPath
	return nil
}

// ProcessElevation builds and writes every elevation tile discovered by
// the walk, recursively filling the holes left by missing sibling
// tiles, per addElevationToTileset/fillMissing*LODElevation in the
// original. Call it after the walk completes and before Flush.
func (b *Builder) ProcessElevation(ctx context.Context) error {
	for t := range b.elevationFiles {
		if err := b.addElevationCore(ctx, t, nil); err != nil {
			return err
		}
	}
	return nil
}

// addElevationCore builds, drapes, inserts, and writes one elevation
// tile, then recurses into the appropriate hole-filling pass.
// gridOverride, when non-nil, is a synthesized subregion grid (hole
// filling) or a duplicated parent grid (negative-LOD chain filling)
// rather than one read from disk.
func (b *Builder) addElevationCore(ctx context.Context, t tile.Tile, gridOverride *elevation.Grid) error {
	if b.processedElevation[t] {
		return nil
	}
	b.processedElevation[t] = true

	var grid elevation.Grid
	if gridOverride != nil {
		grid = *gridOverride
	} else {
		absPath, ok := b.elevationFiles[t]
		if !ok {
			return nil
		}
		g, err := raster.ReadElevationGrid(ctx, absPath)
		if err != nil {
			if cdberrors.Recoverable(err) {
				b.log.Warn("skipping unreadable elevation tile", "path", absPath, "err", err)
				return nil
			}
			return err
		}
		grid = g
	}

	m := elevation.BuildMesh(grid)
	elevation.FixWinding(m)

	targetIndexCount := int(float64(len(m.Indices)) * elevationThresholdIndices)
	simplified := elevation.SimplifyMesh(m, targetIndexCount, elevationDecimateError)
	elevation.FixWinding(simplified)

	minH, maxH := grid.MinMax()
	region := t.Region()
	region.MinHeight, region.MaxHeight = minH, maxH
	t = t.WithRegion(region)

	var mat *mesh.Material
	var texBytes []byte
	var texMime string
	if ancestorLevel, imgPath, found := b.resolveImagery(t); found {
		if t.Level > ancestorLevel {
			if uvs, err := elevation.IndexUVRelativeToParent(simplified.UVs, t.Level, ancestorLevel, t.UREF, t.RREF); err == nil {
				simplified.UVs = uvs
			}
		}
		tex, err := raster.ReadImageryTexture(b.imagery, imgPath)
		if err != nil {
			b.log.Warn("skipping imagery texture", "path", imgPath, "err", err)
		} else {
			texBytes = tex.Data
			texMime = tex.MimeType
			simplified.Material = 0
			// No normal generation pass is implemented (elevationNormal
			// defaults to false in the original too), so draped tiles
			// always use an unlit material.
			mat = &mesh.Material{DoubleSided: true, Unlit: true}
		}
	}

	if _, err := b.insert(t); err != nil {
		return err
	}
	if err := b.writeB3DM(t, simplified, mat, texBytes, texMime); err != nil {
		return err
	}

	if t.Level < 0 {
		return b.fillMissingNegativeLODElevation(ctx, t, grid)
	}
	return b.fillMissingPositiveLODElevation(ctx, t, grid)
}

// fillMissingPositiveLODElevation synthesizes whichever of t's four
// quadtree children have no elevation file of their own, provided at
// least one sibling quadrant does — mirroring the original's
// shouldFillHole gate, which never manufactures a full quadtree out of
// nothing.
func (b *Builder) fillMissingPositiveLODElevation(ctx context.Context, t tile.Tile, grid elevation.Grid) error {
	if t.Level >= tile.MaxLevel {
		return nil
	}
	nw, err := t.NorthWest()
	if err != nil {
		return err
	}
	ne, err := t.NorthEast()
	if err != nil {
		return err
	}
	sw, err := t.SouthWest()
	if err != nil {
		return err
	}
	se, err := t.SouthEast()
	if err != nil {
		return err
	}

	quadrants := []struct {
		tile   tile.Tile
		region elevation.SubRegion
	}{
		{nw, elevation.SubRegionNW},
		{ne, elevation.SubRegionNE},
		{sw, elevation.SubRegionSW},
		{se, elevation.SubRegionSE},
	}

	shouldFillHole := false
	for _, q := range quadrants {
		if _, exists := b.elevationFiles[q.tile]; exists {
			shouldFillHole = true
			break
		}
	}
	if !shouldFillHole {
		return nil
	}

	for _, q := range quadrants {
		if _, exists := b.elevationFiles[q.tile]; exists {
			continue
		}
		sub, err := elevation.ExtractSubRegion(grid, q.region)
		if err != nil {
			continue
		}
		if err := b.addElevationCore(ctx, q.tile, &sub); err != nil {
			return err
		}
	}
	return nil
}

// fillMissingNegativeLODElevation duplicates t's grid onto its sole
// negative-LOD child when the child has no elevation file of its own
// but does have imagery waiting to be draped — mirroring the original's
// "if imagery exists, but we have no more terrain, then duplicate it".
func (b *Builder) fillMissingNegativeLODElevation(ctx context.Context, t tile.Tile, grid elevation.Grid) error {
	child, err := t.NegativeChild()
	if err != nil {
		return err
	}
	if _, exists := b.elevationFiles[child]; exists {
		return nil
	}
	if _, _, ok := b.resolveImagery(child); !ok {
		return nil
	}
	return b.addElevationCore(ctx, child, &grid)
}

// resolveImagery walks from t upward (checking t itself first) until it
// finds recorded imagery, returning that tile's level — the same-tile-
// then-ancestor-walk lookup §4.F step 1 describes.
func (b *Builder) resolveImagery(t tile.Tile) (level int, absPath string, ok bool) {
	cur := t
	for {
		if path, found := b.imageryFiles[imageryKeyFor(cur)]; found {
			return cur.Level, path, true
		}
		parent, hasParent, err := cur.Parent()
		if !hasParent || err != nil {
			return 0, "", false
		}
		cur = parent
	}
}

// AddVectorFeature ingests one vector dataset file (GSFeature,
// GTFeature, road/rail/powerline/hydrography networks, …): every
// feature intersecting t's rectangle is flattened into a batched point
// mesh (one point per vertex; line strings keep all their vertices, and
// polygons contribute their outer ring only when ClampPolygon accepts
// them), with each vertex tagged by its source feature's batch ID.
func (b *Builder) AddVectorFeature(ctx context.Context, absPath string, t tile.Tile) error {
	src, err := vectoring.LoadGeoJSON(absPath)
	if err != nil {
		if cdberrors.Recoverable(err) {
			b.log.Warn("skipping unreadable vector dataset", "path", absPath, "err", err)
			return nil
		}
		return err
	}
	feats, err := src.Features()
	if err != nil {
		return err
	}

	rect := t.Region().Rectangle
	bound := vectoring.Bound(rect)

	m := mesh.New()
	m.Primitive = mesh.Points
	var batchIDs []float32

	for i, f := range feats {
		if !vectoring.Intersects(f, rect) {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Point:
			appendVectorPoint(m, g)
			batchIDs = append(batchIDs, float32(i))
		case orb.LineString:
			for _, p := range g {
				appendVectorPoint(m, p)
				batchIDs = append(batchIDs, float32(i))
			}
		case orb.Polygon:
			if !vectoring.ClampPolygon(g, bound) || len(g) == 0 {
				continue
			}
			for _, p := range g[0] {
				appendVectorPoint(m, p)
				batchIDs = append(batchIDs, float32(i))
			}
		}
	}
	if len(m.Positions) == 0 {
		return nil
	}
	m.BatchIDs = batchIDs
	m.Indices = make([]uint32, len(m.Positions))
	for i := range m.Indices {
		m.Indices[i] = uint32(i)
	}
	m.ComputeRTC()

	if _, err := b.insert(t); err != nil {
		return err
	}
	return b.writeB3DM(t, m, nil, nil, "")
}

func appendVectorPoint(m *mesh.Mesh, p orb.Point) {
	c := geodetic.Cartographic{Longitude: radians(p[0]), Latitude: radians(p[1])}
	pos := geodetic.WGS84.CartographicToCartesian(c)
	m.Positions = append(m.Positions, pos)
	m.AABB.Merge(pos)
}

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }

// AddModelInstance ingests one GT-Model/GS-Model instance placement
// list (a GeoJSON point feature per placement, the same format
// AddVectorFeature reads) and writes it as an i3dm payload wrapped in a
// cmpt container (§4.E, §6). Each placement's actual geometry comes
// from an external model.Loader this converter does not resolve —
// model.Instance/WorldMatrix/NormalUpRight supply the placement math,
// and the embedded glTF content is a minimal placeholder mesh instanced
// at each position, orientation, and scale.
func (b *Builder) AddModelInstance(ctx context.Context, absPath string, t tile.Tile) error {
	src, err := vectoring.LoadGeoJSON(absPath)
	if err != nil {
		if cdberrors.Recoverable(err) {
			b.log.Warn("skipping unreadable model instance list", "path", absPath, "err", err)
			return nil
		}
		return err
	}
	feats, err := src.Features()
	if err != nil {
		return err
	}

	instances := make([]model.Instance, 0, len(feats))
	for _, f := range feats {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		instances = append(instances, model.Instance{
			Position: geodetic.Cartographic{
				Longitude: radians(pt[0]),
				Latitude:  radians(pt[1]),
				Height:    f.Numbers["height"],
			},
			Orientation: mesh.Vec3{
				X: radians(f.Numbers["heading"]),
				Y: radians(f.Numbers["pitch"]),
				Z: radians(f.Numbers["roll"]),
			},
			Scale: mesh.Vec3{
				X: scaleOrOne(f.Numbers["scaleX"]),
				Y: scaleOrOne(f.Numbers["scaleY"]),
				Z: scaleOrOne(f.Numbers["scaleZ"]),
			},
			ModelKey: f.Strings["modelKey"],
		})
	}
	if len(instances) == 0 {
		return nil
	}

	if _, err := b.insert(t); err != nil {
		return err
	}
	return b.writeModelCMPT(t, instances)
}

func scaleOrOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// writeModelCMPT assembles instances into an i3dm feature table (RTC-
// relative positions plus NORMAL_UP/NORMAL_RIGHT derived from each
// instance's world matrix), wraps it in a cmpt container, and writes it
// under outputDir at t's relative path.
func (b *Builder) writeModelCMPT(t tile.Tile, instances []model.Instance) error {
	center := t.Region().Rectangle.Center()
	rtcOrigin := geodetic.WGS84.CartographicToCartesian(center)

	positions := make([]mesh.Vec3f, len(instances))
	ups := make([]mesh.Vec3f, len(instances))
	rights := make([]mesh.Vec3f, len(instances))
	for i, inst := range instances {
		world := model.WorldMatrix(inst)
		pos := geodetic.WGS84.CartographicToCartesian(inst.Position).Sub(rtcOrigin)
		positions[i] = mesh.Vec3f{X: float32(pos.X), Y: float32(pos.Y), Z: float32(pos.Z)}
		ups[i], rights[i] = model.NormalUpRight(world)
	}

	featureTable := tilecontainer.FeatureTable{
		"INSTANCES_LENGTH": len(instances),
		"RTC_CENTER":       [3]float64{rtcOrigin.X, rtcOrigin.Y, rtcOrigin.Z},
		"POSITION":         positions,
		"NORMAL_UP":        ups,
		"NORMAL_RIGHT":     rights,
	}

	placeholder := mesh.New()
	placeholder.Primitive = mesh.Points
	placeholder.Positions = []mesh.Vec3{{}}
	placeholder.PositionRTCs = []mesh.Vec3f{{}}
	placeholder.Indices = []uint32{0}
	glb, err := gltfw.WriteGLB(placeholder, nil, nil, "")
	if err != nil {
		return err
	}
	i3dm, err := tilecontainer.WriteI3DM(featureTable, nil, glb)
	if err != nil {
		return err
	}
	cmpt := tilecontainer.WriteCMPT([][]byte{i3dm})

	relPath, err := t.RelativePath()
	if err != nil {
		return err
	}
	outPath := filepath.Join(b.outputDir, relPath+".cmpt")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return cdberrors.Wrap(cdberrors.IOError, "mkdir tile output", err)
	}
	if err := os.WriteFile(outPath, cmpt, 0o644); err != nil {
		return cdberrors.Wrap(cdberrors.IOError, "write cmpt", err)
	}
	return nil
}

// insert lazily allocates t's tree/availability store and inserts t,
// marking it available. Shared by every dataset ingest path.
func (b *Builder) insert(t tile.Tile) (*tileset.Tileset, error) {
	key := treeKey{gc: t.GeoCell, ds: t.Dataset, cs1: t.CS1, cs2: t.CS2}
	tree, ok := b.trees[key]
	if !ok {
		tree = tileset.New(t)
		b.trees[key] = tree
		b.availability[key] = availability.NewStore()
	}
	if err := tree.Insert(t); err != nil {
		return nil, err
	}
	if t.Level >= 0 {
		b.availability[key].SetAvailable(t.Level, t.RREF, t.UREF)
	}
	return tree, nil
}

// writeB3DM encodes m to glTF, wraps it in a b3dm container with the
// minimal feature table 3D Tiles 1.0 requires (RTC_CENTER + BATCH_LENGTH),
// and writes it under outputDir at t's relative path.
func (b *Builder) writeB3DM(t tile.Tile, m *mesh.Mesh, mat *mesh.Material, texBytes []byte, texMime string) error {
	glb, err := gltfw.WriteGLB(m, mat, texBytes, texMime)
	if err != nil {
		return err
	}

	center := m.AABB.Center()
	batchLength := 0
	if len(m.BatchIDs) > 0 {
		batchLength = int(m.BatchIDs[len(m.BatchIDs)-1]) + 1
	}
	featureTable := tilecontainer.FeatureTable{
		"BATCH_LENGTH": batchLength,
		"RTC_CENTER":   [3]float64{center.X, center.Y, center.Z},
	}
	payload, err := tilecontainer.WriteB3DM(featureTable, nil, glb)
	if err != nil {
		return err
	}

	relPath, err := t.RelativePath()
	if err != nil {
		return err
	}
	outPath := filepath.Join(b.outputDir, relPath+".b3dm")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return cdberrors.Wrap(cdberrors.IOError, "mkdir tile output", err)
	}
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		return cdberrors.Wrap(cdberrors.IOError, "write b3dm", err)
	}
	return nil
}

// Flush serializes every tileset tree and its availability subtrees to
// outputDir, writing one tileset.json per (GeoCell, Dataset, CS1, CS2),
// plus an optional combined root tileset.json when --combine named any
// dataset directories.
func (b *Builder) Flush() error {
	for key, store := range b.availability {
		id := b.trees[key].Root().GeoCellDatasetID()
		for subtreeKey, subtree := range store.Subtrees() {
			blob, err := availability.SerializeSubtree(subtree)
			if err != nil {
				return err
			}
			dir := filepath.Join(b.outputDir, key.gc.RelativePath(), "subtrees", id)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return cdberrors.Wrap(cdberrors.IOError, "mkdir subtrees", err)
			}
			name := fmt.Sprintf("%d_%d_%d.subtree", subtreeKey.RootLevel, subtreeKey.RootX, subtreeKey.RootY)
			if err := os.WriteFile(filepath.Join(dir, name), blob, 0o644); err != nil {
				return cdberrors.Wrap(cdberrors.IOError, "write subtree blob", err)
			}
		}
	}

	var combineLeaves []manifest.Leaf
	for key, tree := range b.trees {
		root := tree.Root()
		var implicit *manifest.ImplicitTiling
		if b.useNext {
			implicit = &manifest.ImplicitTiling{
				SubdivisionScheme: "QUADTREE",
				SubtreeLevels:     availability.SubtreeLevels,
				AvailableLevels:   tile.MaxLevel + 1,
				Subtrees:          manifest.SubtreesObject{URI: "subtrees/" + root.GeoCellDatasetID() + "/{level}_{x}_{y}.subtree"},
			}
		}
		rootPath, err := root.RelativePath()
		if err != nil {
			return err
		}
		doc := manifest.Write(root.Region(), rootPath+".b3dm", manifest.RootGeometricError, true, implicit)
		data, err := manifest.Marshal(doc)
		if err != nil {
			return err
		}
		dir := filepath.Join(b.outputDir, key.gc.RelativePath())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cdberrors.Wrap(cdberrors.IOError, "mkdir tileset output", err)
		}
		name := root.GeoCellDatasetID() + ".json"
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return cdberrors.Wrap(cdberrors.IOError, "write tileset.json", err)
		}

		if dirName, ok := dataset.DirectoryName(key.ds); ok && contains(b.combine, dirName) {
			combineLeaves = append(combineLeaves, manifest.Leaf{
				Region:         root.Region(),
				ContentURI:     path.Join(key.gc.RelativePath(), name),
				GeometricError: manifest.RootGeometricError,
			})
		}
	}

	if len(combineLeaves) > 0 {
		doc := manifest.Combine(combineLeaves)
		data, err := manifest.Marshal(doc)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(b.outputDir, "tileset.json"), data, 0o644); err != nil {
			return cdberrors.Wrap(cdberrors.IOError, "write combined tileset.json", err)
		}
	}

	return b.imagery.Close()
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
