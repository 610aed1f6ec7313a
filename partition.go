package strata

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OutOfBoundsPolicy selects what a partition does with positions outside its
// extent.
type OutOfBoundsPolicy uint8

const (
	// Reject returns no chunk for out-of-bounds positions.
	Reject OutOfBoundsPolicy = iota
	// ClampToEdge snaps out-of-bounds positions to the nearest edge cell.
	ClampToEdge
)

// Partition maps world positions to spatial chunks. Each implementation
// declares whether its chunk pointers are stable across frames; cross-chunk
// movement consults the flag to pick between pointer- and key-equality fast
// paths.
type Partition interface {
	// GetChunk resolves a position to at most one chunk under the policy.
	GetChunk(pos mgl32.Vec3, reg *ChunkRegistry, level LevelID, policy OutOfBoundsPolicy) *SpatialChunk

	// RegisterAllChunks binds every cell (and the global chunk) into the
	// registry under the level's ID.
	RegisterAllChunks(reg *ChunkRegistry, level LevelID)

	// GlobalEntityManager returns the manager for entities with no spatial
	// placement.
	GlobalEntityManager() *EntityManager

	// CullChunks returns the cells intersecting the frustum.
	CullChunks(f Frustum) []*SpatialChunk

	// EntityNum returns the total entity count across all managers.
	EntityNum() int

	// Managers returns every entity manager of the partition, cell managers
	// first, the global manager last.
	Managers() []*EntityManager

	// StablePointers reports whether chunk pointers stay valid across
	// frames.
	StablePointers() bool
}

// PartitionUpdater is an optional per-frame hook run by the level before its
// systems.
type PartitionUpdater interface {
	Update(dt float64)
}

// Grid2DPartition divides the XY plane into width × height square cells of
// cellSize units. Cell pointers are stable for the partition's lifetime.
type Grid2DPartition struct {
	width    int
	height   int
	cellSize float32
	cells    []*SpatialChunk
	global   *SpatialChunk
}

var _ Partition = &Grid2DPartition{}

// NewGrid2DPartition creates the grid and one entity manager per cell, plus
// the global manager.
func NewGrid2DPartition(rt *Runtime, width, height int, cellSize float32) *Grid2DPartition {
	p := &Grid2DPartition{
		width:    width,
		height:   height,
		cellSize: cellSize,
		cells:    make([]*SpatialChunk, width*height),
		global:   NewSpatialChunk(rt),
	}
	const zExtent = float32(1 << 20)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := NewSpatialChunk(rt)
			c.SetBounds(AABB{
				Min: mgl32.Vec3{float32(x) * cellSize, float32(y) * cellSize, -zExtent},
				Max: mgl32.Vec3{float32(x+1) * cellSize, float32(y+1) * cellSize, zExtent},
			})
			p.cells[y*width+x] = c
		}
	}
	return p
}

// GetChunk resolves pos by flooring its XY coordinates into cell indices.
func (p *Grid2DPartition) GetChunk(pos mgl32.Vec3, _ *ChunkRegistry, _ LevelID, policy OutOfBoundsPolicy) *SpatialChunk {
	x := int(math.Floor(float64(pos.X() / p.cellSize)))
	y := int(math.Floor(float64(pos.Y() / p.cellSize)))

	if policy == ClampToEdge {
		x = clampInt(x, 0, p.width-1)
		y = clampInt(y, 0, p.height-1)
		return p.cells[y*p.width+x]
	}

	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return nil
	}
	return p.cells[y*p.width+x]
}

// RegisterAllChunks binds every cell under code row*width+col+1 and the
// global chunk under the next code.
func (p *Grid2DPartition) RegisterAllChunks(reg *ChunkRegistry, level LevelID) {
	for i, c := range p.cells {
		reg.Register(SpatialChunkKey{Level: level, Code: uint64(i) + 1}, c)
	}
	reg.Register(SpatialChunkKey{Level: level, Code: uint64(len(p.cells)) + 1}, p.global)
}

// GlobalEntityManager returns the manager for non-spatial entities.
func (p *Grid2DPartition) GlobalEntityManager() *EntityManager {
	return p.global.EntityManager()
}

// CullChunks returns the cells whose bounds intersect the frustum.
func (p *Grid2DPartition) CullChunks(f Frustum) []*SpatialChunk {
	var out []*SpatialChunk
	for _, c := range p.cells {
		if f.IntersectsAABB(c.Bounds()) {
			out = append(out, c)
		}
	}
	return out
}

// EntityNum sums entity counts across every manager.
func (p *Grid2DPartition) EntityNum() int {
	total := p.global.EntityManager().EntityCount()
	for _, c := range p.cells {
		total += c.EntityManager().EntityCount()
	}
	return total
}

// Managers returns all cell managers followed by the global manager.
func (p *Grid2DPartition) Managers() []*EntityManager {
	out := make([]*EntityManager, 0, len(p.cells)+1)
	for _, c := range p.cells {
		out = append(out, c.EntityManager())
	}
	return append(out, p.global.EntityManager())
}

// StablePointers reports that grid cells never move.
func (p *Grid2DPartition) StablePointers() bool {
	return true
}

// Cell returns the chunk at grid coordinates (x, y).
func (p *Grid2DPartition) Cell(x, y int) *SpatialChunk {
	return p.cells[y*p.width+x]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// VoidPartition is the no-partitioning fallback: a single chunk receives
// every position.
type VoidPartition struct {
	chunk *SpatialChunk
}

var _ Partition = &VoidPartition{}

// NewVoidPartition creates the partition and its single chunk.
func NewVoidPartition(rt *Runtime) *VoidPartition {
	return &VoidPartition{chunk: NewSpatialChunk(rt)}
}

func (p *VoidPartition) GetChunk(_ mgl32.Vec3, _ *ChunkRegistry, _ LevelID, _ OutOfBoundsPolicy) *SpatialChunk {
	return p.chunk
}

func (p *VoidPartition) RegisterAllChunks(reg *ChunkRegistry, level LevelID) {
	reg.Register(SpatialChunkKey{Level: level, Code: 1}, p.chunk)
}

func (p *VoidPartition) GlobalEntityManager() *EntityManager {
	return p.chunk.EntityManager()
}

func (p *VoidPartition) CullChunks(Frustum) []*SpatialChunk {
	return []*SpatialChunk{p.chunk}
}

func (p *VoidPartition) EntityNum() int {
	return p.chunk.EntityManager().EntityCount()
}

func (p *VoidPartition) Managers() []*EntityManager {
	return []*EntityManager{p.chunk.EntityManager()}
}

func (p *VoidPartition) StablePointers() bool {
	return true
}
