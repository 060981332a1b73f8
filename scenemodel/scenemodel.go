// SPDX-License-Identifier: Unlicense OR MIT

// Package scenemodel implements the root aggregator: it owns the
// model's origin and matrix, routes every create_* authoring call,
// decides among the three layer storage strategies, selects or opens
// layers by composite key, and finalizes the whole model into
// immutable GPU resources plus a linked set of entities.
package scenemodel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"scenepack.dev/config"
	"scenepack.dev/driver"
	"scenepack.dev/entity"
	"scenepack.dev/f32"
	"scenepack.dev/f64"
	"scenepack.dev/geometry"
	"scenepack.dev/internal/bucket"
	"scenepack.dev/internal/quant"
	"scenepack.dev/layer"
	"scenepack.dev/texture"
	"scenepack.dev/transform"
)

// Sentinel errors mirroring the invariant-violation contract every
// create_* call shares.
var (
	ErrDuplicateMeshID   = errors.New("scenemodel: duplicate mesh id")
	ErrUnknownGeometryID = errors.New("scenemodel: unknown geometry id")
	ErrUnknownTransformID = errors.New("scenemodel: unknown transform id")
	ErrMeshAlreadyBound  = errors.New("scenemodel: mesh already bound to an entity")
	ErrUnknownMeshID     = errors.New("scenemodel: unknown mesh id")
	ErrConflictingParams = errors.New("scenemodel: conflicting mesh parameters")
	ErrAlreadyFinalized  = errors.New("scenemodel: already finalized")
	ErrNotPreFinalized   = errors.New("scenemodel: pre_finalize has not run")
	ErrUnknownTextureSetID = errors.New("scenemodel: unknown texture set id")
)

type meshRecord struct {
	id        string
	layer     layer.LayerOps
	portionID layer.PortionID
	localAABB f32.Box3 // mesh-local AABB (after mesh_matrix, before entity offset)
	buckets   []bucket.Bucket // non-nil only for the DTX path over a registered geometry
	boundToEntity bool
}

// MeshConfig is the authoring-time parameter set for CreateMesh.
type MeshConfig struct {
	ID string

	// Instanced path: reference a registered geometry.
	GeometryID string

	// Batched path: provide raw geometry inline.
	Primitive geometry.Primitive
	Positions []float32
	Indices   []uint32
	CreaseAngleDeg float32

	Origin *f64.Vec3 // defaults to the model's origin

	Position *f32.Vec3
	Rotation *f32.EulerXYZ
	Scale    *f32.Vec3
	Matrix   *f32.Mat4
	TransformID string

	TextureSetID string
	Color        f32.Vec3
	Opacity      float32
}

// Model is the root aggregator for one scene.
type Model struct {
	id     string
	origin f64.Vec3
	matrix f32.Mat4
	cfg    config.Config
	device driver.Device

	geometries *geometry.Registry
	textures   *texture.Registry
	transforms *transform.Registry

	openChains map[any][]layer.LayerOps // composite key -> capacity-overflow chain, newest last
	layerList  []layer.LayerOps
	scratch    *layer.ScratchPool

	// geometryBuckets memoizes bucket.Build per geometry id, since a
	// geometry's DTX bucket split is shared across every instance of
	// that geometry and is expensive enough to not want to recompute
	// per object.
	geometryBuckets map[string][]bucket.Bucket

	meshes       map[string]*meshRecord
	entities     map[string]*entity.Entity
	meshBoundTo  map[string]string // mesh id -> entity id

	numTriangles int
	numLines     int
	numPoints    int

	preFinalized bool
	finalized    bool

	worldAABBDirty bool
	worldAABB      f32.Box3

	dummyEntityCount int

	// Catalog sizes snapshotted at Finalize, before geometries.Release
	// zeroes the authoring-only geometry registry.
	numGeometriesAtFinalize int
	numTransformsAtFinalize int
}

// New creates an empty model rooted at origin, using device for GPU
// resource creation (nil is valid: every layer then operates without
// uploading anything, useful for tests).
func New(id string, origin f64.Vec3, matrix f32.Mat4, cfg config.Config, device driver.Device) *Model {
	return &Model{
		id:          id,
		origin:      origin,
		matrix:      matrix,
		cfg:         cfg,
		device:      device,
		geometries:  geometry.NewRegistry(cfg.DefaultCreaseAngleDeg),
		textures:    texture.NewRegistry(device),
		transforms:  transform.NewRegistry(),
		openChains:      make(map[any][]layer.LayerOps),
		geometryBuckets: make(map[string][]bucket.Bucket),
		meshes:      make(map[string]*meshRecord),
		entities:    make(map[string]*entity.Entity),
		meshBoundTo: make(map[string]string),
	}
}

func (m *Model) ID() string { return m.id }

// CreateGeometry registers a reusable geometry descriptor.
func (m *Model) CreateGeometry(cfg geometry.Config) (*geometry.Geometry, error) {
	return m.geometries.Create(cfg)
}

// CreateTransform registers a transform node.
func (m *Model) CreateTransform(cfg transform.Config) (*transform.Transform, error) {
	return m.transforms.Create(cfg)
}

// CreateTexture registers a texture and starts its async decode.
func (m *Model) CreateTexture(id string, opts driver.TextureOptions, data []byte) (*texture.Texture, error) {
	return m.textures.CreateTexture(id, opts, data)
}

// CreateTextureSet registers a texture set.
func (m *Model) CreateTextureSet(cfg texture.TextureSet) (*texture.TextureSet, error) {
	return m.textures.CreateTextureSet(cfg)
}

// meshMatrix composes a mesh's placement from whichever of
// Position/Rotation/Scale, Matrix, or TransformID was given.
func (m *Model) meshMatrix(cfg MeshConfig) (f32.Mat4, error) {
	set := 0
	if cfg.Matrix != nil {
		set++
	}
	if cfg.TransformID != "" {
		set++
	}
	if cfg.Position != nil || cfg.Rotation != nil || cfg.Scale != nil {
		set++
	}
	if set > 1 {
		return f32.Mat4{}, ErrConflictingParams
	}

	switch {
	case cfg.Matrix != nil:
		return *cfg.Matrix, nil
	case cfg.TransformID != "":
		tr, ok := m.transforms.Get(cfg.TransformID)
		if !ok {
			return f32.Mat4{}, fmt.Errorf("%w: %s", ErrUnknownTransformID, cfg.TransformID)
		}
		return tr.WorldMatrix(), nil
	case cfg.Position != nil || cfg.Rotation != nil || cfg.Scale != nil:
		pos := f32.Vec3{}
		if cfg.Position != nil {
			pos = *cfg.Position
		}
		scale := f32.Vec3{X: 1, Y: 1, Z: 1}
		if cfg.Scale != nil {
			scale = *cfg.Scale
		}
		rot := f32.IdentityQuat()
		if cfg.Rotation != nil {
			rot = f32.QuatFromEulerXYZ(*cfg.Rotation)
		}
		return f32.Compose(pos, rot, scale), nil
	default:
		return f32.Identity4(), nil
	}
}

func (m *Model) effectiveOrigin(cfg MeshConfig) f64.Vec3 {
	if cfg.Origin != nil {
		return *cfg.Origin
	}
	return m.origin
}

func (m *Model) dtxEligible(prim geometry.Primitive, cfg MeshConfig) bool {
	return m.cfg.DTXEnabled && prim.IsTriangleLike() && cfg.TextureSetID == ""
}

// CreateMesh runs the batched-triangle creation pipeline (or the
// simpler instanced path, when GeometryID is set) and returns the new
// mesh's id.
func (m *Model) CreateMesh(cfg MeshConfig) (string, error) {
	if m.preFinalized {
		return "", ErrAlreadyFinalized
	}
	if _, exists := m.meshes[cfg.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateMeshID, cfg.ID)
	}

	if cfg.TextureSetID != "" {
		if _, ok := m.textures.GetSet(cfg.TextureSetID); !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownTextureSetID, cfg.TextureSetID)
		}
	}

	meshMatrix, err := m.meshMatrix(cfg)
	if err != nil {
		return "", err
	}
	origin := m.effectiveOrigin(cfg)

	var rec *meshRecord
	if cfg.GeometryID != "" {
		rec, err = m.createInstancedMesh(cfg, meshMatrix, origin)
	} else {
		rec, err = m.createBatchedMesh(cfg, meshMatrix, origin)
	}
	if err != nil {
		return "", err
	}

	m.meshes[rec.id] = rec
	m.worldAABBDirty = true
	return rec.id, nil
}

func (m *Model) createInstancedMesh(cfg MeshConfig, meshMatrix f32.Mat4, origin f64.Vec3) (*meshRecord, error) {
	geom, ok := m.geometries.Get(cfg.GeometryID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGeometryID, cfg.GeometryID)
	}
	prim := layer.PrimitiveOf(geom.Primitive)
	dtx := m.dtxEligible(geom.Primitive, cfg)

	rgba := quant.EncodeColor(cfg.Color, cfg.Opacity)
	flags := layer.FlagState{Visible: true}

	var l layer.LayerOps
	var portionID layer.PortionID
	var buckets []bucket.Bucket
	var err error

	if dtx {
		buckets = m.bucketsForGeometry(geom)
		key := dtxKey(prim, origin)
		dl := m.openOrCreateDTX(key, prim, geom.AABB, len(buckets))
		portionID, err = dl.CreatePortion(buckets, geom.DecodeMatrix, meshMatrix, rgba, flags)
		l = dl
	} else {
		key := instancedKey(origin, cfg.TextureSetID, cfg.GeometryID)
		il := m.openOrCreateInstanced(key, prim, cfg.GeometryID, geom.DecodeMatrix, geom.AABB)
		portionID, err = il.CreatePortion(meshMatrix, rgba, flags)
		l = il
	}
	if err != nil {
		return nil, err
	}

	m.bumpPrimCounters(geom.Primitive, indexCount(geom))
	box := f32.TransformBox3(meshMatrix, geom.AABB)
	return &meshRecord{id: cfg.ID, layer: l, portionID: portionID, localAABB: box, buckets: buckets}, nil
}

// bucketsForGeometry returns the memoized index-width split for a
// registered geometry's DTX path, building it on first use.
func (m *Model) bucketsForGeometry(geom *geometry.Geometry) []bucket.Bucket {
	if b, ok := m.geometryBuckets[geom.ID]; ok {
		return b
	}
	b := bucket.Build(geom, bucket.Options{
		Weld:         m.cfg.BucketWeld,
		Rebucket:     m.cfg.BucketRebucket,
		MaxPerBucket: m.cfg.BucketMaxPerBucket,
	})
	m.geometryBuckets[geom.ID] = b
	return b
}

func indexCount(g *geometry.Geometry) int { return len(g.Indices) }

func (m *Model) createBatchedMesh(cfg MeshConfig, meshMatrix f32.Mat4, origin f64.Vec3) (*meshRecord, error) {
	if len(cfg.Positions) == 0 {
		return nil, ErrConflictingParams
	}
	indices := cfg.Indices
	if cfg.Primitive != geometry.Points && len(indices) == 0 {
		indices = make([]uint32, len(cfg.Positions)/3)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	rtcPositions := make([]float32, len(cfg.Positions))
	rtcOrigin, _ := quant.WorldToRTC(cfg.Positions, origin, m.cfg.RTCTileSize, m.cfg.RTCThreshold, rtcPositions)
	origin = rtcOrigin

	qr := quant.QuantizePositions(rtcPositions)
	worldAABB := f32.TransformBox3(meshMatrix, qr.AABB)

	var edgeIndices []uint32
	if cfg.Primitive.IsTriangleLike() {
		crease := cfg.CreaseAngleDeg
		if crease == 0 {
			crease = geometry.DefaultCreaseAngleDeg
		}
		edgeIndices = geometry.ComputeEdgeIndices(indices, qr.Quantized, qr.Decode, crease)
	}

	b := bucket.Bucket{
		PositionsCompressed: qr.Quantized,
		Indices:             indices,
		EdgeIndices:         edgeIndices,
		Width:               bucket.WidthForCount(len(qr.Quantized) / 3),
	}

	prim := layer.PrimitiveOf(cfg.Primitive)
	dtx := m.dtxEligible(cfg.Primitive, cfg)
	rgba := quant.EncodeColor(cfg.Color, cfg.Opacity)
	flags := layer.FlagState{Visible: true}

	var l layer.LayerOps
	var portionID layer.PortionID
	var buckets []bucket.Bucket
	var err error

	if dtx {
		buckets = []bucket.Bucket{b}
		key := dtxKey(prim, origin)
		dl := m.openOrCreateDTX(key, prim, qr.AABB, 1)
		portionID, err = dl.CreatePortion(buckets, qr.Decode, meshMatrix, rgba, flags)
		l = dl
	} else {
		key := batchedKey(origin, prim, qr.Decode, cfg.TextureSetID)
		est := layer.SizeEstimate{NumVertices: len(qr.Quantized) / 3, NumIndices: len(indices), NumEdgeIndices: len(edgeIndices)}
		vl := m.openOrCreateBatched(key, prim, qr.Decode, est)
		portionID, err = vl.CreatePortion(b, rgba, flags)
		l = vl
	}
	if err != nil {
		return nil, err
	}

	m.bumpPrimCounters(cfg.Primitive, len(indices))
	return &meshRecord{id: cfg.ID, layer: l, portionID: portionID, localAABB: worldAABB, buckets: buckets}, nil
}

func (m *Model) bumpPrimCounters(prim geometry.Primitive, numIndices int) {
	switch {
	case prim == geometry.Lines:
		m.numLines += numIndices / 2
	case prim == geometry.Points:
		m.numPoints += numIndices
	default:
		m.numTriangles += numIndices / 3
	}
}

// --- composite layer keys ---

type batchedLayerKey struct {
	ox, oy, oz   int64
	primitive    layer.Primitive
	decodeHash   uint64
	textureSetID string
}

type instancedLayerKey struct {
	ox, oy, oz   int64
	textureSetID string
	geometryID   string
}

type dtxLayerKey struct {
	primitive layer.Primitive
	ox, oy, oz int64
}

func roundedOrigin(o f64.Vec3) [3]int64 { return o.RoundedKey() }

func batchedKey(origin f64.Vec3, prim layer.Primitive, decode f32.Mat4, textureSetID string) batchedLayerKey {
	r := roundedOrigin(origin)
	return batchedLayerKey{ox: r[0], oy: r[1], oz: r[2], primitive: prim, decodeHash: hashMat4(decode), textureSetID: textureSetID}
}

func instancedKey(origin f64.Vec3, textureSetID, geometryID string) instancedLayerKey {
	r := roundedOrigin(origin)
	return instancedLayerKey{ox: r[0], oy: r[1], oz: r[2], textureSetID: textureSetID, geometryID: geometryID}
}

func dtxKey(prim layer.Primitive, origin f64.Vec3) dtxLayerKey {
	r := roundedOrigin(origin)
	return dtxLayerKey{primitive: prim, ox: r[0], oy: r[1], oz: r[2]}
}

func hashMat4(m f32.Mat4) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, c := range m {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(c))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// openChain returns the newest layer in key's overflow chain that
// still accepts portions, creating one (and appending it to both the
// chain and the model's layerList) if the chain is empty or full. A
// composite key maps to one layer while it has room; once that layer
// reports CanCreatePortion() == false a sibling layer opens under the
// same key, so e.g. 65537 instanced portions for one key split across
// two VBOInstanced layers of up to 65536 each.
func (m *Model) openChain(key any, est layer.SizeEstimate, makeLayer func() layer.LayerOps) layer.LayerOps {
	chain := m.openChains[key]
	if n := len(chain); n > 0 {
		if chain[n-1].CanCreatePortion(est) {
			return chain[n-1]
		}
	}
	l := makeLayer()
	m.openChains[key] = append(chain, l)
	m.layerList = append(m.layerList, l)
	return l
}

func (m *Model) openOrCreateBatched(key batchedLayerKey, prim layer.Primitive, decode f32.Mat4, est layer.SizeEstimate) *layer.VBOBatched {
	l := m.openChain(key, est, func() layer.LayerOps {
		id := fmt.Sprintf("%s/vbobatched/%d", m.id, len(m.layerList))
		return layer.NewVBOBatched(id, prim, m.device, scratchPoolFor(m), decode, defaultMaxVertices, defaultMaxIndices)
	})
	return l.(*layer.VBOBatched)
}

func (m *Model) openOrCreateInstanced(key instancedLayerKey, prim layer.Primitive, geometryID string, decode f32.Mat4, baseAABB f32.Box3) *layer.VBOInstanced {
	l := m.openChain(key, layer.SizeEstimate{NumSubPortions: 1}, func() layer.LayerOps {
		id := fmt.Sprintf("%s/vboinstanced/%d", m.id, len(m.layerList))
		return layer.NewVBOInstanced(id, prim, m.device, geometryID, decode, baseAABB, defaultMaxInstances)
	})
	return l.(*layer.VBOInstanced)
}

func (m *Model) openOrCreateDTX(key dtxLayerKey, prim layer.Primitive, baseAABB f32.Box3, numSubPortions int) *layer.DTX {
	if numSubPortions <= 0 {
		numSubPortions = 1
	}
	l := m.openChain(key, layer.SizeEstimate{NumSubPortions: numSubPortions}, func() layer.LayerOps {
		id := fmt.Sprintf("%s/dtx/%d", m.id, len(m.layerList))
		return layer.NewDTX(id, prim, m.device, baseAABB)
	})
	return l.(*layer.DTX)
}

const (
	defaultMaxVertices  = 1 << 16
	defaultMaxIndices   = 1 << 18
	defaultMaxInstances = 1 << 16
)

func scratchPoolFor(m *Model) *layer.ScratchPool {
	if m.scratch == nil {
		m.scratch = layer.NewScratchPool()
		m.scratch.Warmup(m.cfg.ScratchPoolWarmup)
	}
	return m.scratch
}

// EntityConfig is the authoring-time parameter set for CreateEntity.
type EntityConfig struct {
	ID       string
	MeshIDs  []string
	IsObject bool
	Initial  entity.Flag
}

// CreateEntity groups previously created meshes into one entity. Each
// mesh may belong to at most one entity.
func (m *Model) CreateEntity(cfg EntityConfig) (*entity.Entity, error) {
	if m.preFinalized {
		return nil, ErrAlreadyFinalized
	}
	meshes := make([]entity.Mesh, 0, len(cfg.MeshIDs))
	for _, meshID := range cfg.MeshIDs {
		rec, ok := m.meshes[meshID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMeshID, meshID)
		}
		if rec.boundToEntity {
			return nil, fmt.Errorf("%w: %s", ErrMeshAlreadyBound, meshID)
		}
		meshes = append(meshes, entity.Mesh{Layer: rec.layer, PortionID: rec.portionID, AABB: rec.localAABB})
	}
	e, err := entity.New(entity.Config{ID: cfg.ID, ModelID: m.id, Meshes: meshes, IsObject: cfg.IsObject, Initial: cfg.Initial})
	if err != nil {
		return nil, err
	}
	for _, meshID := range cfg.MeshIDs {
		m.meshes[meshID].boundToEntity = true
		m.meshBoundTo[meshID] = cfg.ID
	}
	m.entities[cfg.ID] = e
	m.worldAABBDirty = true
	return e, nil
}

// PreFinalize closes authoring: every mesh not yet bound to an
// explicit entity is swept into one auto-generated dummy entity, so
// every mesh ends up reachable through exactly one entity regardless
// of whether the host ever called CreateEntity for it. After this
// call, CreateMesh/CreateEntity are rejected.
func (m *Model) PreFinalize() error {
	if m.preFinalized {
		return ErrAlreadyFinalized
	}
	var orphaned []string
	for id, rec := range m.meshes {
		if !rec.boundToEntity {
			orphaned = append(orphaned, id)
		}
	}
	if len(orphaned) > 0 {
		m.dummyEntityCount++
		dummyID := fmt.Sprintf("%s#__dummy%d", m.id, m.dummyEntityCount)
		if _, err := m.CreateEntity(EntityConfig{ID: dummyID, MeshIDs: orphaned, IsObject: false}); err != nil {
			return fmt.Errorf("scenemodel: dummy entity sweep: %w", err)
		}
	}
	m.preFinalized = true
	return nil
}

// Finalize finalizes every layer and every entity's meshes, assigns
// dense draw-order layer indices, and releases the authoring-only
// geometry/transform catalogs. PreFinalize must have run first.
func (m *Model) Finalize() error {
	if !m.preFinalized {
		return ErrNotPreFinalized
	}
	if m.finalized {
		return ErrAlreadyFinalized
	}
	for _, l := range m.layerList {
		if err := l.Finalize(); err != nil {
			return fmt.Errorf("scenemodel: finalize layer %s: %w", l.SortID(), err)
		}
	}
	// Portions are created with a provisional FlagState{Visible: true}
	// before their owning entity (and its possibly non-default initial
	// flags) exists. Now that every layer accepts SetFlags, push each
	// entity's real flag state down to its meshes.
	for _, e := range m.entities {
		if err := e.Register(); err != nil {
			return fmt.Errorf("scenemodel: register entity: %w", err)
		}
	}

	sort.Slice(m.layerList, func(i, j int) bool { return m.layerList[i].SortID() < m.layerList[j].SortID() })

	m.numGeometriesAtFinalize = m.geometries.Len()
	m.numTransformsAtFinalize = m.transforms.Len()
	m.geometries.Release()
	m.worldAABBDirty = true
	m.finalized = true
	return nil
}

// CatalogCounts reports how many geometries, textures, and transforms
// this model's authoring catalogs held. Valid at any point: before
// Finalize the geometry/transform counts are read live from the
// registries; after it they are the values snapshotted just before
// geometries.Release zeroed the authoring-only registry.
func (m *Model) CatalogCounts() (numGeometries, numTextures, numTransforms int) {
	if m.finalized {
		return m.numGeometriesAtFinalize, m.textures.Len(), m.numTransformsAtFinalize
	}
	return m.geometries.Len(), m.textures.Len(), m.transforms.Len()
}

// Tick advances one render frame: applies every finished async texture
// decode (texture.Registry.PollAll), flushes each DTX layer's coalesced
// deferred texture writes, bounded by cfg.MaxDeferredUpdatesPerTick,
// and resets every DTX layer's direct-write budget for the next
// frame. Returns the total number of rows flushed.
func (m *Model) Tick() int {
	m.textures.PollAll()
	written := 0
	for _, l := range m.layerList {
		if dl, ok := l.(*layer.DTX); ok {
			written += dl.Tick(m.cfg.MaxDeferredUpdatesPerTick)
		}
	}
	return written
}

// LayerList returns the finalized draw-order layer list. Only valid
// after Finalize.
func (m *Model) LayerList() []layer.LayerOps { return m.layerList }

// Entities returns every entity registered on the model, including
// any auto-generated dummy entities.
func (m *Model) Entities() map[string]*entity.Entity { return m.entities }

// EntityForMesh returns the id of the entity a mesh was bound to
// (explicitly, or by the PreFinalize dummy-entity sweep), if any.
func (m *Model) EntityForMesh(meshID string) (string, bool) {
	id, ok := m.meshBoundTo[meshID]
	return id, ok
}

// Counts returns the model's aggregate primitive counts, accumulated
// as meshes were created.
func (m *Model) Counts() (triangles, lines, points int) {
	return m.numTriangles, m.numLines, m.numPoints
}

// AABB returns the model's world-space bounding box: the lazy union
// of every entity's AABB, offset by the model's own placement matrix.
func (m *Model) AABB() f32.Box3 {
	if !m.worldAABBDirty {
		return m.worldAABB
	}
	box := f32.EmptyBox3()
	for _, e := range m.entities {
		box = box.Union(e.AABB())
	}
	m.worldAABB = f32.TransformBox3(m.matrix, box)
	m.worldAABBDirty = false
	return m.worldAABB
}

// SetVisible fans visibility out to every entity in the model.
func (m *Model) SetVisible(visible bool) error {
	for _, e := range m.entities {
		if err := e.SetVisible(visible); err != nil {
			return err
		}
	}
	return nil
}
