// Package tile implements CDB tile identity (spec.md §4.A): the
// name<->coordinate bijection, parent/child derivation across the
// negative-LOD chain and the positive-LOD quadtree, and bounding-region
// computation. Grounded on CDBTile.{h,cpp} in the original
// CDBTo3DTiles source.
package tile

import (
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/dataset"
	"github.com/cesiumgs/cdb2tiles/internal/geocell"
	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
)

// MinLevel and MaxLevel bound the CDB LOD range (spec.md §3 invariant).
const (
	MinLevel = -10
	MaxLevel = 23
)

// Tile is the tuple (GeoCell, Dataset, CS_1, CS_2, Level, UREF, RREF)
// addressing one CDB payload, plus its derived bounding region and an
// optional custom content URI recorded by tileset insertion.
type Tile struct {
	GeoCell            geocell.GeoCell
	Dataset            dataset.Dataset
	CS1, CS2           int
	Level, UREF, RREF  int
	region             geodetic.Region
	customContentURI   string
	hasCustomContentURI bool
}

// New validates and constructs a Tile, computing its bounding region.
func New(gc geocell.GeoCell, ds dataset.Dataset, cs1, cs2, level, uref, rref int) (Tile, error) {
	if level < MinLevel || level > MaxLevel {
		return Tile{}, cdberrors.New(cdberrors.OutOfRange,
			fmt.Sprintf("level %d out of range [%d, %d]", level, MinLevel, MaxLevel))
	}
	if level < 0 {
		if uref != 0 || rref != 0 {
			return Tile{}, cdberrors.New(cdberrors.OutOfRange, "negative level tile requires UREF=RREF=0")
		}
	} else {
		maxWidth := 1 << uint(level)
		if uref < 0 || uref >= maxWidth {
			return Tile{}, cdberrors.New(cdberrors.OutOfRange, "UREF out of range for level")
		}
		if rref < 0 || rref >= maxWidth {
			return Tile{}, cdberrors.New(cdberrors.OutOfRange, "RREF out of range for level")
		}
	}

	region, err := calcBoundRegion(gc, level, uref, rref)
	if err != nil {
		return Tile{}, err
	}

	return Tile{
		GeoCell: gc, Dataset: ds, CS1: cs1, CS2: cs2,
		Level: level, UREF: uref, RREF: rref,
		region: region,
	}, nil
}

// Region returns the tile's bounding region.
func (t Tile) Region() geodetic.Region { return t.region }

// WithRegion returns a copy of t with its region overwritten (used by
// the elevation builder once actual min/max heights are known).
func (t Tile) WithRegion(r geodetic.Region) Tile {
	t.region = r
	return t
}

// CustomContentURI returns the tile's recorded content URI, if any.
func (t Tile) CustomContentURI() (string, bool) {
	return t.customContentURI, t.hasCustomContentURI
}

// WithCustomContentURI returns a copy of t with its content URI set.
func (t Tile) WithCustomContentURI(uri string) Tile {
	t.customContentURI = uri
	t.hasCustomContentURI = true
	return t
}

// Equal reports identity equality per spec.md §8 (geocell, level,
// UREF/RREF, CS1/CS2, dataset) — it ignores the content URI and region,
// which are derived/mutable bookkeeping, not part of identity.
func (t Tile) Equal(o Tile) bool {
	return t.GeoCell == o.GeoCell && t.Dataset == o.Dataset &&
		t.CS1 == o.CS1 && t.CS2 == o.CS2 &&
		t.Level == o.Level && t.UREF == o.UREF && t.RREF == o.RREF
}

// Parent returns (L-1, ...) per the tile navigation contract. ok is
// false only at L == MinLevel, which has no parent.
func (t Tile) Parent() (Tile, bool, error) {
	if t.Level == MinLevel {
		return Tile{}, false, nil
	}
	parentLevel := t.Level - 1
	if parentLevel < 0 {
		p, err := New(t.GeoCell, t.Dataset, t.CS1, t.CS2, parentLevel, 0, 0)
		return p, true, err
	}
	p, err := New(t.GeoCell, t.Dataset, t.CS1, t.CS2, parentLevel, t.UREF/2, t.RREF/2)
	return p, true, err
}

// NegativeChild returns the sole child of a negative-LOD tile (L -> L+1,
// UREF/RREF unchanged). PreconditionViolation if L >= 0.
func (t Tile) NegativeChild() (Tile, error) {
	if t.Level >= 0 {
		return Tile{}, cdberrors.New(cdberrors.PreconditionViolation, "NegativeChild only valid for L < 0")
	}
	return New(t.GeoCell, t.Dataset, t.CS1, t.CS2, t.Level+1, t.UREF, t.RREF)
}

// NorthWest returns the NW quadrant child of a positive-LOD tile:
// UREF' = 2U+1, RREF' = 2R. PreconditionViolation if L < 0.
func (t Tile) NorthWest() (Tile, error) { return t.positiveChild(1, 0) }

// NorthEast returns the NE quadrant child: UREF' = 2U+1, RREF' = 2R+1.
func (t Tile) NorthEast() (Tile, error) { return t.positiveChild(1, 1) }

// SouthWest returns the SW quadrant child: UREF' = 2U, RREF' = 2R.
func (t Tile) SouthWest() (Tile, error) { return t.positiveChild(0, 0) }

// SouthEast returns the SE quadrant child: UREF' = 2U, RREF' = 2R+1.
func (t Tile) SouthEast() (Tile, error) { return t.positiveChild(0, 1) }

func (t Tile) positiveChild(uBit, rBit int) (Tile, error) {
	if t.Level < 0 {
		return Tile{}, cdberrors.New(cdberrors.PreconditionViolation, "quadrant child only exists for L >= 0")
	}
	return New(t.GeoCell, t.Dataset, t.CS1, t.CS2, t.Level+1, 2*t.UREF+uBit, 2*t.RREF+rBit)
}

// GeoCellDatasetID returns the "<NS><lat><WE><lon>_D<ddd>_S<ccc>_T<ccc>"
// prefix used to name combined manifests.
func (t Tile) GeoCellDatasetID() string {
	return fmt.Sprintf("%s%s_D%03d_S%03d_T%03d",
		t.GeoCell.LatitudeDirectoryName(), t.GeoCell.LongitudeDirectoryName(),
		int(t.Dataset), t.CS1, t.CS2)
}

// cs1Name / cs2Name return the "S<ccc>"/"T<ccc>" filename components.
func (t Tile) cs1Name() string { return fmt.Sprintf("S%03d", t.CS1) }
func (t Tile) cs2Name() string { return fmt.Sprintf("T%03d", t.CS2) }

// levelInFilename returns "L<ll>"/"LC<ll>" with the absolute level
// zero-padded to 2 digits.
func (t Tile) levelInFilename() string {
	if t.Level < 0 {
		return fmt.Sprintf("LC%02d", -t.Level)
	}
	return fmt.Sprintf("L%02d", t.Level)
}

// levelDirectoryName returns the level directory component: "LC" for
// any negative level, "L<ll>" for non-negative ones.
func (t Tile) levelDirectoryName() string {
	if t.Level < 0 {
		return "LC"
	}
	return fmt.Sprintf("L%02d", t.Level)
}

// filename returns the canonical filename (without extension), with an
// option to use the 1-digit short level form some downstream tools
// expect (relativePathShortLevel).
func (t Tile) filename(shortLevel bool) string {
	levelPart := t.levelInFilename()
	if shortLevel {
		if t.Level < 0 {
			levelPart = fmt.Sprintf("LC%d", -t.Level)
		} else {
			levelPart = fmt.Sprintf("L%d", t.Level)
		}
	}
	return fmt.Sprintf("%s%s_D%03d_%s_%s_%s_U%d_R%d",
		t.GeoCell.LatitudeDirectoryName(), t.GeoCell.LongitudeDirectoryName(),
		int(t.Dataset), t.cs1Name(), t.cs2Name(), levelPart, t.UREF, t.RREF)
}

// RelativePath returns "Tiles/<Lat>/<Lon>/<NNN_Dataset>/<L..|LC>/U<u>/<filename>".
func (t Tile) RelativePath() (string, error) {
	return t.relativePath(false)
}

// RelativePathShortLevel is the same directory with a 1-digit level in
// the filename — some downstream tools depend on this form.
func (t Tile) RelativePathShortLevel() (string, error) {
	return t.relativePath(true)
}

func (t Tile) relativePath(shortLevel bool) (string, error) {
	dirName, ok := dataset.DirectoryName(t.Dataset)
	if !ok {
		return "", cdberrors.New(cdberrors.ConfigError, fmt.Sprintf("unknown dataset %d", int(t.Dataset)))
	}
	datasetDir := fmt.Sprintf("%03d_%s", int(t.Dataset), dirName)
	return path.Join(
		"Tiles",
		t.GeoCell.LatitudeDirectoryName(),
		t.GeoCell.LongitudeDirectoryName(),
		datasetDir,
		t.levelDirectoryName(),
		fmt.Sprintf("U%d", t.UREF),
		t.filename(shortLevel),
	), nil
}

// FromFilename parses a CDB tile filename's stem (no directory, no
// extension) into a Tile. It returns ok=false on any malformed field —
// no partial tiles escape.
func FromFilename(name string) (Tile, bool) {
	// <NS><lat><WE><lon>_D<ddd>_S<ccc>_T<ccc>_<L|LC><ll>_U<u>_R<r>
	parts := strings.Split(name, "_")
	if len(parts) != 7 {
		return Tile{}, false
	}
	geoPart, dPart, sPart, tPart, lPart, uPart, rPart := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6]

	lat, ok := geocell.ParseLatFromFilename(geoPart)
	if !ok {
		return Tile{}, false
	}
	// lon portion starts right after the latitude digits within geoPart.
	lonStart := 1
	for lonStart < len(geoPart) && geoPart[lonStart] >= '0' && geoPart[lonStart] <= '9' {
		lonStart++
	}
	lon, ok := geocell.ParseLonFromFilename(geoPart[lonStart:])
	if !ok {
		return Tile{}, false
	}

	datasetCode, ok := parsePrefixedInt(dPart, "D")
	if !ok {
		return Tile{}, false
	}
	cs1, ok := parsePrefixedInt(sPart, "S")
	if !ok {
		return Tile{}, false
	}
	cs2, ok := parsePrefixedInt(tPart, "T")
	if !ok {
		return Tile{}, false
	}

	var level int
	if strings.HasPrefix(lPart, "LC") {
		n, ok := parsePrefixedInt(lPart, "LC")
		if !ok {
			return Tile{}, false
		}
		level = -n
	} else if strings.HasPrefix(lPart, "L") {
		n, ok := parsePrefixedInt(lPart, "L")
		if !ok {
			return Tile{}, false
		}
		level = n
	} else {
		return Tile{}, false
	}

	uref, ok := parsePrefixedInt(uPart, "U")
	if !ok {
		return Tile{}, false
	}
	rref, ok := parsePrefixedInt(rPart, "R")
	if !ok {
		return Tile{}, false
	}

	gc, err := geocell.New(lat, lon)
	if err != nil {
		return Tile{}, false
	}
	if !dataset.Valid(datasetCode) {
		return Tile{}, false
	}

	t, err := New(gc, dataset.Dataset(datasetCode), cs1, cs2, level, uref, rref)
	if err != nil {
		return Tile{}, false
	}
	return t, true
}

// parsePrefixedInt parses "<prefix><digits...>" (optionally followed by
// more text) returning the leading integer after the prefix.
func parsePrefixedInt(s, prefix string) (int, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	rest := s[len(prefix):]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(rest[:i])
	if err != nil {
		return 0, false
	}
	return v, true
}

// calcBoundRegion computes the tile's geodetic bounding rectangle from
// (geoCell, level, UREF, RREF), per spec.md §3. Heights default to
// [0, 0]; the elevation builder overwrites them with actual min/max.
func calcBoundRegion(gc geocell.GeoCell, level, uref, rref int) (geodetic.Region, error) {
	distLOD := 1.0
	if level > 0 {
		distLOD = math.Pow(2.0, -float64(level))
	}
	lonExtentDeg, err := gc.LonExtentDegrees()
	if err != nil {
		return geodetic.Region{}, cdberrors.Wrap(cdberrors.OutOfRange, "lon extent", err)
	}
	latExtentDeg := gc.LatExtentDegrees()

	lonUnit := distLOD * float64(lonExtentDeg)
	latUnit := distLOD * float64(latExtentDeg)

	minLonDeg := float64(gc.Longitude()) + float64(rref)*lonUnit
	minLatDeg := float64(gc.Latitude()) + float64(uref)*latUnit

	rect := geodetic.Rectangle{
		West:  radians(minLonDeg),
		South: radians(minLatDeg),
		East:  radians(minLonDeg + lonUnit),
		North: radians(minLatDeg + latUnit),
	}
	return geodetic.Region{Rectangle: rect}, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }
