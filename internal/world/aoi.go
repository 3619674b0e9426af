package world

// Cells are AroundAreaInTiles wide, so a 3x3 neighbourhood of cells covers
// hearing range.
const cellSize = AroundAreaInTiles

type cellKey struct {
	mapID int
	cx    int
	cy    int
}

func toCellCoord(v int) int {
	if v < 0 {
		return (v - cellSize + 1) / cellSize
	}
	return v / cellSize
}

// AOIGrid tracks which sessions are in which cells.
// Accessed only from the game loop goroutine; no locks.
type AOIGrid struct {
	cells map[cellKey]map[uint64]struct{} // cellKey → set of sessionIDs
	at    map[uint64]cellKey              // sessionID → its cell
}

func NewAOIGrid() *AOIGrid {
	return &AOIGrid{
		cells: make(map[cellKey]map[uint64]struct{}),
		at:    make(map[uint64]cellKey),
	}
}

func key(mapID, x, y int) cellKey {
	return cellKey{mapID: mapID, cx: toCellCoord(x), cy: toCellCoord(y)}
}

// Add places a session into the grid, moving it if already present.
func (g *AOIGrid) Add(sessionID uint64, mapID, x, y int) {
	k := key(mapID, x, y)
	if old, ok := g.at[sessionID]; ok {
		if old == k {
			return
		}
		g.Remove(sessionID)
	}
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[uint64]struct{})
		g.cells[k] = cell
	}
	cell[sessionID] = struct{}{}
	g.at[sessionID] = k
}

// Remove takes a session out of the grid.
func (g *AOIGrid) Remove(sessionID uint64) {
	k, ok := g.at[sessionID]
	if !ok {
		return
	}
	delete(g.at, sessionID)
	if cell := g.cells[k]; cell != nil {
		delete(cell, sessionID)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// GetNearby returns all session IDs in a 3x3 neighbourhood of cells
// around the given position. Caller does fine-grained distance filtering.
func (g *AOIGrid) GetNearby(mapID, x, y int) []uint64 {
	cx := toCellCoord(x)
	cy := toCellCoord(y)
	var result []uint64
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			k := cellKey{mapID: mapID, cx: cx + dx, cy: cy + dy}
			for sid := range g.cells[k] {
				result = append(result, sid)
			}
		}
	}
	return result
}
