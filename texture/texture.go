// SPDX-License-Identifier: Unlicense OR MIT

// Package texture implements the texture and texture-set catalog:
// async decode of an opaque byte buffer into a GPU texture, behind an
// Empty -> Loading -> {Ready, Failed} state machine, plus the
// five-slot TextureSet a mesh's material references index into.
package texture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/sync/errgroup"

	"scenepack.dev/driver"
)

// State is a texture's async load state.
type State uint8

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Texture is one catalog entry: a GPU handle that starts empty and
// transitions to Ready or Failed once its source bytes are decoded.
// Decode runs on its own goroutine; the result is only observed, and
// the GPU texture only created, when the owning model calls Poll —
// this keeps every GPU-touching call on the single authoring/render
// thread even though decode work happens concurrently.
type Texture struct {
	id     string
	device driver.Device
	opts   driver.TextureOptions

	state     State
	gpu       driver.Texture
	pending   chan decodeResult
	result    *decodeResult // cached by waitDecoded, consumed by the next Poll
	destroyed bool
}

type decodeResult struct {
	pixels []byte
	width  int
	height int
	err    error
}

// ErrEmptySource is the decode error recorded for an empty source
// buffer; the next Poll then marks the texture Failed. It is not
// propagated to the caller that started the load.
var ErrEmptySource = errors.New("texture: empty or undecodable source")

// New creates an Empty texture that will use opts once loaded.
// opts.Width/opts.Height are overwritten with the decoded image's
// dimensions.
func New(id string, device driver.Device, opts driver.TextureOptions) *Texture {
	return &Texture{id: id, device: device, opts: opts}
}

func (t *Texture) ID() string    { return t.id }
func (t *Texture) State() State  { return t.state }
func (t *Texture) GPU() driver.Texture { return t.gpu }

// LoadAsync kicks off a background decode of data. Calling it again
// before the previous load completed restarts the load; the previous
// goroutine's result is discarded once it eventually arrives, since
// pending is replaced.
func (t *Texture) LoadAsync(data []byte) {
	t.state = StateLoading
	t.result = nil
	ch := make(chan decodeResult, 1)
	t.pending = ch
	go decodeInto(ch, data)
}

func decodeInto(ch chan<- decodeResult, data []byte) {
	if len(data) == 0 {
		ch <- decodeResult{err: ErrEmptySource}
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		ch <- decodeResult{err: fmt.Errorf("texture: decode: %w", err)}
		return
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	ch <- decodeResult{pixels: rgba.Pix, width: b.Dx(), height: b.Dy()}
}

// Poll observes a pending LoadAsync result without blocking. It
// returns true if the texture's state changed (Loading -> Ready or
// Loading -> Failed). Safe to call every tick whether or not a load
// is pending.
func (t *Texture) Poll() bool {
	var res decodeResult
	switch {
	case t.result != nil:
		res = *t.result
		t.result = nil
		t.pending = nil
	case t.pending != nil:
		select {
		case res = <-t.pending:
			t.pending = nil
		default:
			return false
		}
	default:
		return false
	}
	if t.destroyed {
		return false // destruction cancels any in-flight load
	}
	if res.err != nil || len(res.pixels) == 0 {
		t.state = StateFailed
		return true
	}
	opts := t.opts
	opts.Width, opts.Height = res.width, res.height
	gpu, err := t.device.NewTexture2D(opts)
	if err != nil {
		t.state = StateFailed
		return true
	}
	gpu.SetImage(res.pixels, res.width*4)
	t.gpu = gpu
	t.state = StateReady
	return true
}

// waitDecoded blocks until this texture's background decode produces
// a result (success or failure) or ctx is cancelled, without itself
// touching the GPU: it only drains the decode channel and caches the
// result for the next Poll to apply on the authoring thread. Used by
// Registry.Wait to fan a texture set's loads out across goroutines
// while keeping every GPU call single-threaded.
func (t *Texture) waitDecoded(ctx context.Context) error {
	if t.pending == nil || t.result != nil {
		return nil
	}
	select {
	case res := <-t.pending:
		t.result = &res
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy releases the GPU texture, if any, and cancels any in-flight
// load so a late Poll becomes a no-op.
func (t *Texture) Destroy() {
	t.destroyed = true
	if t.gpu != nil {
		t.gpu.Destroy()
		t.gpu = nil
	}
}

// DefaultAlphaCutoff is used by a TextureSet when its config omits
// one.
const DefaultAlphaCutoff = 0.5

// TextureSet is the ordered tuple of material textures a mesh
// references by id.
type TextureSet struct {
	ID                 string
	ColorTextureID     string
	MetallicRoughnessID string
	NormalsTextureID   string
	EmissiveTextureID  string
	OcclusionTextureID string
	AlphaCutoff        float32
}

// Registry is the catalog of textures and texture sets. A scene model
// keeps its registry, and the GPU textures in it, across Finalize;
// only Release destroys them.
type Registry struct {
	device      driver.Device
	textures    map[string]*Texture
	textureSets map[string]*TextureSet
}

var (
	ErrDuplicateTextureID    = errors.New("texture: duplicate texture id")
	ErrDuplicateTextureSetID = errors.New("texture: duplicate texture set id")
	ErrUnknownTextureID      = errors.New("texture: unknown texture id")
	ErrUnknownTextureSetID   = errors.New("texture: unknown texture set id")
)

// NewRegistry creates an empty registry and populates it with the
// five default 1x1 solid-white textures every texture set falls back
// to.
func NewRegistry(device driver.Device) *Registry {
	r := &Registry{
		device:      device,
		textures:    make(map[string]*Texture),
		textureSets: make(map[string]*TextureSet),
	}
	for _, id := range []string{"__default_color", "__default_metallic_roughness", "__default_normals", "__default_emissive", "__default_occlusion"} {
		tex := New(id, device, driver.TextureOptions{Width: 1, Height: 1})
		if device != nil {
			white := [4]uint8{255, 255, 255, 255}
			gpu, err := device.NewTexture2D(driver.TextureOptions{Width: 1, Height: 1, PreloadColor: &white})
			if err == nil {
				tex.gpu = gpu
				tex.state = StateReady
			}
		}
		r.textures[id] = tex
	}
	r.textureSets["__default"] = &TextureSet{
		ID:                  "__default",
		ColorTextureID:      "__default_color",
		MetallicRoughnessID: "__default_metallic_roughness",
		NormalsTextureID:    "__default_normals",
		EmissiveTextureID:   "__default_emissive",
		OcclusionTextureID:  "__default_occlusion",
		AlphaCutoff:         DefaultAlphaCutoff,
	}
	return r
}

// CreateTexture registers an empty texture under id, starting its
// async decode of data when data is non-empty.
func (r *Registry) CreateTexture(id string, opts driver.TextureOptions, data []byte) (*Texture, error) {
	if _, exists := r.textures[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTextureID, id)
	}
	t := New(id, r.device, opts)
	r.textures[id] = t
	if len(data) > 0 {
		t.LoadAsync(data)
	}
	return t, nil
}

// CreateTextureSet registers a texture set under cfg.ID, resolving
// empty slot ids to the registry's defaults and defaulting
// AlphaCutoff when cfg leaves it at zero.
func (r *Registry) CreateTextureSet(cfg TextureSet) (*TextureSet, error) {
	if _, exists := r.textureSets[cfg.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTextureSetID, cfg.ID)
	}
	def := r.textureSets["__default"]
	resolve := func(id, fallback string) (string, error) {
		if id == "" {
			return fallback, nil
		}
		if _, ok := r.textures[id]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownTextureID, id)
		}
		return id, nil
	}
	var err error
	ts := cfg
	if ts.ColorTextureID, err = resolve(cfg.ColorTextureID, def.ColorTextureID); err != nil {
		return nil, err
	}
	if ts.MetallicRoughnessID, err = resolve(cfg.MetallicRoughnessID, def.MetallicRoughnessID); err != nil {
		return nil, err
	}
	if ts.NormalsTextureID, err = resolve(cfg.NormalsTextureID, def.NormalsTextureID); err != nil {
		return nil, err
	}
	if ts.EmissiveTextureID, err = resolve(cfg.EmissiveTextureID, def.EmissiveTextureID); err != nil {
		return nil, err
	}
	if ts.OcclusionTextureID, err = resolve(cfg.OcclusionTextureID, def.OcclusionTextureID); err != nil {
		return nil, err
	}
	if ts.AlphaCutoff == 0 {
		ts.AlphaCutoff = DefaultAlphaCutoff
	}
	r.textureSets[cfg.ID] = &ts
	return &ts, nil
}

// Get returns the texture registered under id.
func (r *Registry) Get(id string) (*Texture, bool) {
	t, ok := r.textures[id]
	return t, ok
}

// GetSet returns the texture set registered under id.
func (r *Registry) GetSet(id string) (*TextureSet, bool) {
	ts, ok := r.textureSets[id]
	return ts, ok
}

// PollAll polls every texture with a pending load, returning the
// number that changed state this call. A scene model calls this once
// per render tick.
func (r *Registry) PollAll() int {
	n := 0
	for _, t := range r.textures {
		if t.Poll() {
			n++
		}
	}
	return n
}

// Len reports the number of textures registered, including the
// registry's own default fallback textures.
func (r *Registry) Len() int { return len(r.textures) }

// Wait blocks until every texture slot referenced by the texture set
// under setID has a decode result (Ready or Failed) or ctx is done,
// fanning the wait out across the set's distinct textures with
// errgroup rather than polling them one at a time. It only observes
// decode completion; call PollAll afterward, on the authoring thread,
// to actually create the GPU textures from the cached results.
func (r *Registry) Wait(ctx context.Context, setID string) error {
	ts, ok := r.textureSets[setID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTextureSetID, setID)
	}
	var g errgroup.Group
	for _, id := range ts.textureIDs() {
		tex, ok := r.textures[id]
		if !ok {
			continue
		}
		tex := tex
		g.Go(func() error { return tex.waitDecoded(ctx) })
	}
	return g.Wait()
}

// Wait blocks until every texture this set references has finished
// loading (or ctx is done), then returns. See Registry.Wait.
func (ts *TextureSet) Wait(ctx context.Context, r *Registry) error {
	return r.Wait(ctx, ts.ID)
}

func (ts *TextureSet) textureIDs() []string {
	return []string{ts.ColorTextureID, ts.MetallicRoughnessID, ts.NormalsTextureID, ts.EmissiveTextureID, ts.OcclusionTextureID}
}

// Release destroys every texture's GPU resource. Texture sets hold no
// GPU resources of their own.
func (r *Registry) Release() {
	for _, t := range r.textures {
		t.Destroy()
	}
	r.textures = nil
	r.textureSets = nil
}
