package main

import "gonum.org/v1/gonum/spatial/r3"

// Extent of the flat fallback plane when no terrain is loaded.
const fallbackPlaneSize = 2000.0 // m

// TerrainDefinition is the admin-authored elevation input: a 2D grid of
// elevations in metres plus the physical map size in kilometres.
type TerrainDefinition struct {
	Name       string      `yaml:"name" json:"name"`
	SizeKm     float64     `yaml:"sizeKm" json:"sizeKm"`
	Elevations [][]float64 `yaml:"elevations" json:"elevations"`
}

type terrainKind int

const (
	terrainFlat terrainKind = iota
	terrainHeightfield
	terrainMesh
)

// Terrain is the collision representation built from a TerrainDefinition.
// Square grids become a regular heightfield; non-square grids an explicit
// indexed mesh. Either way elevation queries run on the normalized grid.
type Terrain struct {
	kind          terrainKind
	rows, cols    int
	width, length float64 // m, X and Z extents
	heights       []float64 // row-major, normalized around the grid midpoint

	// Mesh form for non-square grids. Kept alongside the grid so the
	// collision geometry matches what a physics backend would triangulate.
	verts   []r3.Vec
	indices []int32
}

// validGrid reports whether the elevation grid can produce geometry:
// at least 2 rows and 2 columns, all rows the same length.
func validGrid(grid [][]float64) bool {
	if len(grid) < 2 {
		return false
	}
	cols := len(grid[0])
	if cols < 2 {
		return false
	}
	for _, row := range grid {
		if len(row) != cols {
			return false
		}
	}
	return true
}

// BuildTerrain converts a definition into collision geometry. A nil or
// malformed definition degrades to a flat bounded plane — bad authored
// content must never take a room down.
func BuildTerrain(def *TerrainDefinition) *Terrain {
	if def == nil || !validGrid(def.Elevations) {
		return &Terrain{
			kind:   terrainFlat,
			width:  fallbackPlaneSize,
			length: fallbackPlaneSize,
		}
	}

	rows := len(def.Elevations)
	cols := len(def.Elevations[0])

	sizeM := def.SizeKm * 1000.0
	if sizeM <= 0 {
		sizeM = fallbackPlaneSize
	}

	// Normalize elevations around their own midpoint so the geometry sits
	// near the world origin no matter what absolute heights the author used.
	min, max := def.Elevations[0][0], def.Elevations[0][0]
	for _, row := range def.Elevations {
		for _, h := range row {
			if h < min {
				min = h
			}
			if h > max {
				max = h
			}
		}
	}
	mid := (min + max) / 2.0

	t := &Terrain{
		rows:    rows,
		cols:    cols,
		width:   sizeM,
		length:  sizeM,
		heights: make([]float64, rows*cols),
	}
	for r, row := range def.Elevations {
		for c, h := range row {
			t.heights[r*cols+c] = h - mid
		}
	}

	if rows == cols {
		t.kind = terrainHeightfield
		return t
	}

	// Non-square grid: build an explicit indexed triangle mesh.
	t.kind = terrainMesh
	t.verts = make([]r3.Vec, 0, rows*cols)
	cellW := t.width / float64(cols-1)
	cellL := t.length / float64(rows-1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			t.verts = append(t.verts, r3.Vec{
				X: -t.width/2 + float64(c)*cellW,
				Y: t.heights[r*cols+c],
				Z: -t.length/2 + float64(r)*cellL,
			})
		}
	}
	t.indices = make([]int32, 0, (rows-1)*(cols-1)*6)
	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols-1; c++ {
			i := int32(r*cols + c)
			j := int32((r+1)*cols + c)
			t.indices = append(t.indices, i, j, i+1, i+1, j, j+1)
		}
	}
	return t
}

// ElevationAt samples the terrain height at a world position using
// bilinear interpolation. ok is false outside the terrain bounds.
func (t *Terrain) ElevationAt(x, z float64) (float64, bool) {
	half := t.width / 2
	halfL := t.length / 2
	if x < -half || x > half || z < -halfL || z > halfL {
		return 0, false
	}
	if t.kind == terrainFlat {
		return 0, true
	}

	// Grid coordinates; column along X, row along Z.
	fc := (x + half) / t.width * float64(t.cols-1)
	fr := (z + halfL) / t.length * float64(t.rows-1)

	c0 := int(fc)
	r0 := int(fr)
	if c0 >= t.cols-1 {
		c0 = t.cols - 2
	}
	if r0 >= t.rows-1 {
		r0 = t.rows - 2
	}
	tx := fc - float64(c0)
	tz := fr - float64(r0)

	h00 := t.heights[r0*t.cols+c0]
	h01 := t.heights[r0*t.cols+c0+1]
	h10 := t.heights[(r0+1)*t.cols+c0]
	h11 := t.heights[(r0+1)*t.cols+c0+1]

	top := h00 + (h01-h00)*tx
	bottom := h10 + (h11-h10)*tx
	return top + (bottom-top)*tz, true
}
