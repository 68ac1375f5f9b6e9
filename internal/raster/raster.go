// Package raster ingests CDB elevation and imagery rasters (GeoTIFF,
// JPEG2000) via GDAL, grounded on the godal usage in
// jcom-dev-zmanim's cmd/import-elevation/main.go: godal.RegisterAll at
// process init, godal.Open + Dataset.GeoTransform + Bands()[0].Read,
// with an LRU cache of open datasets for repeated parent-imagery
// lookups during hole filling.
package raster

import (
	"container/list"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/elevation"
	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
)

func init() {
	godal.RegisterAll()
}

// ReadElevationGrid opens path (GeoTIFF) and reads its single band into
// an elevation.Grid, using the raster's own geotransform for the
// covered rectangle.
func ReadElevationGrid(ctx context.Context, path string) (elevation.Grid, error) {
	ds, err := godal.Open(path, godal.ErrLogger(nil))
	if err != nil {
		return elevation.Grid{}, cdberrors.Wrap(cdberrors.IOError, "open raster "+path, err)
	}
	defer ds.Close()

	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY

	gt, err := ds.GeoTransform()
	if err != nil {
		return elevation.Grid{}, cdberrors.Wrap(cdberrors.IOError, "read geotransform "+path, err)
	}

	bands := ds.Bands()
	if len(bands) == 0 {
		return elevation.Grid{}, cdberrors.New(cdberrors.IOError, "raster has no bands: "+path)
	}

	heights := make([]float64, width*height)
	buf := make([]float32, width*height)
	if err := bands[0].Read(0, 0, buf, width, height); err != nil {
		return elevation.Grid{}, cdberrors.Wrap(cdberrors.IOError, "read band "+path, err)
	}
	for i, v := range buf {
		heights[i] = float64(v)
	}

	west := gt[0]
	north := gt[3]
	east := west + float64(width)*gt[1]
	south := north + float64(height)*gt[5]

	return elevation.Grid{
		Width: width, Height: height, Heights: heights,
		Rect: geodetic.Rectangle{West: radians(west), South: radians(south), East: radians(east), North: radians(north)},
	}, nil
}

func radians(deg float64) float64 { return deg * 3.14159265358979323846 / 180.0 }

// Texture is an imagery raster ready to embed as a glTF texture: the
// raw (already-encoded) image bytes plus the mime type the embedding
// image element should declare.
type Texture struct {
	Data     []byte
	MimeType string
}

// ReadImageryTexture opens path through cache (validating it as a
// readable raster with godal, same as createImageryTexture's Texture
// read in the original) and returns its raw file bytes for direct glTF
// image embedding — CDB imagery is already encoded (JPEG2000/GeoTIFF),
// so there is no decode/re-encode step, only a passthrough.
func ReadImageryTexture(cache *DatasetCache, path string) (Texture, error) {
	if _, err := cache.Get(path); err != nil {
		return Texture{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Texture{}, cdberrors.Wrap(cdberrors.IOError, "read imagery texture "+path, err)
	}
	return Texture{Data: data, MimeType: imageMimeType(path)}, nil
}

func imageMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jp2":
		return "image/jp2"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// cachedDataset wraps an open godal.Dataset for reuse across multiple
// parent-imagery lookups, mirroring jcom-dev-zmanim's cachedTile.
type cachedDataset struct {
	mu   sync.Mutex
	path string
	ds   *godal.Dataset
}

// DatasetCache bounds the number of simultaneously-open GDAL datasets
// during the elevation builder's parent-imagery walk, modeled directly
// on jcom-dev-zmanim's LRUTileCache (container/list + map).
type DatasetCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*list.Element
	lru     *list.List
}

type cacheEntry struct {
	path string
	cd   *cachedDataset
}

// NewDatasetCache returns a cache holding at most maxSize open datasets.
func NewDatasetCache(maxSize int) *DatasetCache {
	return &DatasetCache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get opens (or returns the cached handle for) path, evicting the
// least-recently-used dataset if the cache is full.
func (c *DatasetCache) Get(path string) (*godal.Dataset, error) {
	c.mu.Lock()
	if elem, ok := c.entries[path]; ok {
		c.lru.MoveToFront(elem)
		cd := elem.Value.(*cacheEntry).cd
		c.mu.Unlock()
		return cd.ds, nil
	}
	c.mu.Unlock()

	ds, err := godal.Open(path, godal.ErrLogger(nil))
	if err != nil {
		return nil, cdberrors.Wrap(cdberrors.IOError, "open raster "+path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[path]; ok {
		ds.Close()
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).cd.ds, nil
	}

	if c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		if oldest != nil {
			entry := oldest.Value.(*cacheEntry)
			entry.cd.ds.Close()
			delete(c.entries, entry.path)
			c.lru.Remove(oldest)
		}
	}

	cd := &cachedDataset{path: path, ds: ds}
	elem := c.lru.PushFront(&cacheEntry{path: path, cd: cd})
	c.entries[path] = elem
	return ds, nil
}

// Close releases every dataset currently held by the cache.
func (c *DatasetCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, elem := range c.entries {
		entry := elem.Value.(*cacheEntry)
		if err := entry.cd.ds.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", entry.path, err)
		}
	}
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	return firstErr
}
