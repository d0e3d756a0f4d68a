// ABOUTME: Audio asset store for player modules
// ABOUTME: Decodes assets by id, resamples them and loads or derives their segments
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/resample"
	"github.com/Resonate-Protocol/nu-go/pkg/grain"
)

// ErrMissingAsset is returned for an asset id that is not loaded
var ErrMissingAsset = errors.New("missing asset")

// DefaultSliceLength is the segment length used when an asset has no sidecar
const DefaultSliceLength = 0.1

// SegmentsSuffix names the analysis sidecar next to an asset
const SegmentsSuffix = ".segments.json"

// Asset is a decoded mono buffer with its analyzed segments
type Asset struct {
	ID       int
	Path     string
	Buffer   audio.Buffer
	Segments []grain.Segment
}

// Assets maps asset ids to decoded assets
type Assets struct {
	mu     sync.RWMutex
	byID   map[int]*Asset
	loaded bool
}

// NewAssets creates a store holding the given assets, marked as loaded
func NewAssets(assets ...*Asset) *Assets {
	a := &Assets{byID: make(map[int]*Asset)}
	for _, asset := range assets {
		a.byID[asset.ID] = asset
	}
	a.loaded = len(assets) > 0
	return a
}

// Get returns the asset with the given id
func (a *Assets) Get(id int) (*Asset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	asset, ok := a.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrMissingAsset, id)
	}
	return asset, nil
}

// Loaded reports whether loading has finished
func (a *Assets) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded
}

// Len returns the number of assets
func (a *Assets) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byID)
}

// Load decodes every path, using its position as the asset id. Failed assets
// are logged and skipped so the others stay usable.
func (a *Assets) Load(paths []string, sampleRate int) {
	loaded := make(map[int]*Asset, len(paths))
	for id, path := range paths {
		asset, err := LoadAsset(id, path, sampleRate, DefaultSliceLength)
		if err != nil {
			log.Printf("Failed to load asset %d: %v", id, err)
			continue
		}
		loaded[id] = asset
		log.Printf("Loaded asset %d: %s (%.1fs, %d segments)", id, path, asset.Buffer.Seconds(), len(asset.Segments))
	}

	a.mu.Lock()
	for id, asset := range loaded {
		if a.byID == nil {
			a.byID = make(map[int]*Asset)
		}
		a.byID[id] = asset
	}
	a.loaded = true
	a.mu.Unlock()
}

// LoadAsset decodes one asset at the output sample rate and finds its segments
func LoadAsset(id int, path string, sampleRate int, sliceLength float64) (*Asset, error) {
	buf, err := decode.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if sampleRate > 0 {
		buf = resample.Buffer(buf, sampleRate)
	}

	segments, err := loadSegments(path + SegmentsSuffix)
	if err != nil {
		return nil, err
	}
	if segments == nil {
		segments = grain.Slice(buf, sliceLength)
	}

	return &Asset{
		ID:       id,
		Path:     path,
		Buffer:   buf,
		Segments: grain.Renumber(segments),
	}, nil
}

// loadSegments reads a sidecar; a missing file yields nil segments
func loadSegments(path string) ([]grain.Segment, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}

	var segments []grain.Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return segments, nil
}
