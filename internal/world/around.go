package world

// AroundAreaInTiles is the per-axis distance within which two characters
// on the same map hear each other.
const AroundAreaInTiles = 10

// AreAround reports whether two positions are within AroundAreaInTiles on
// both axes. Symmetric. Callers check the map separately.
func AreAround(x1, y1, x2, y2 int) bool {
	return abs(x1-x2) <= AroundAreaInTiles && abs(y1-y2) <= AroundAreaInTiles
}

// IsAround reports whether other is on p's map and within range.
func (p *Player) IsAround(other *Player) bool {
	return p.MapID == other.MapID && AreAround(p.X, p.Y, other.X, other.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
