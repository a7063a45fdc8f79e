package anvil

import (
	"math"
	"sort"

	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ============================================================================
// Types
// ============================================================================

// CellKey - Coordonnées d'une cellule dans l'espace 3D
type CellKey struct {
	X, Y, Z int
}

// Cell - Conteneur d'indices de proxies dans une cellule
type Cell struct {
	proxyIndices []int
}

// SpatialGrid - Grille spatiale uniforme avec hashing, implémente Broadphase
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int

	proxies []*BroadphaseProxy
}

// unboundedExtent marks proxies too large for the grid (infinite planes)
const unboundedExtent = 1e5

// ============================================================================
// Constructeur
// ============================================================================

// NewSpatialGrid - Crée une nouvelle grille spatiale
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].proxyIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

// nextPowerOfTwo - Arrondit à la puissance de 2 supérieure
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// ============================================================================
// Broadphase
// ============================================================================

func (sg *SpatialGrid) CreateProxy(aabb actor.AABB, body *actor.RigidBody) *BroadphaseProxy {
	proxy := &BroadphaseProxy{
		Body:      body,
		Aabb:      aabb,
		index:     len(sg.proxies),
		unbounded: isUnbounded(aabb),
	}
	sg.proxies = append(sg.proxies, proxy)

	return proxy
}

func (sg *SpatialGrid) DestroyProxy(proxy *BroadphaseProxy) {
	idx := proxy.index
	if idx < 0 || idx >= len(sg.proxies) || sg.proxies[idx] != proxy {
		return
	}

	last := len(sg.proxies) - 1
	sg.proxies[idx] = sg.proxies[last]
	sg.proxies[idx].index = idx
	sg.proxies = sg.proxies[:last]
	proxy.index = -1
}

func (sg *SpatialGrid) SetAabb(proxy *BroadphaseProxy, aabb actor.AABB) {
	proxy.Aabb = aabb
	proxy.unbounded = isUnbounded(aabb)
}

// RayTest - Teste le segment contre tous les proxies
func (sg *SpatialGrid) RayTest(from, to mgl64.Vec3, fn func(proxy *BroadphaseProxy, hitFraction float64) bool) {
	for _, proxy := range sg.proxies {
		if proxy.unbounded {
			if !fn(proxy, 0) {
				return
			}
			continue
		}
		if t, hit := proxy.Aabb.RayIntersects(from, to); hit {
			if !fn(proxy, t) {
				return
			}
		}
	}
}

func (sg *SpatialGrid) AabbTest(aabb actor.AABB, fn func(proxy *BroadphaseProxy) bool) {
	for _, proxy := range sg.proxies {
		if proxy.unbounded || proxy.Aabb.Overlaps(aabb) {
			if !fn(proxy) {
				return
			}
		}
	}
}

// CalculateOverlappingPairs rebuilds the grid from the current proxy bounds
// and sweeps it for overlapping pairs. Unbounded proxies are paired against
// every other proxy without touching the grid.
func (sg *SpatialGrid) CalculateOverlappingPairs() []Pair {
	sg.clear()
	for i, proxy := range sg.proxies {
		if proxy.unbounded {
			continue
		}
		sg.insert(i, proxy)
	}
	sg.sortCells()

	pairs := make([]Pair, 0, len(sg.proxies)/2)
	seen := make([]bool, len(sg.proxies))

	// ========== BOUCLE SUR PROXIES ==========
	for proxyIdx, proxyA := range sg.proxies {
		if proxyA.unbounded {
			pairs = sg.appendUnboundedPairs(pairs, proxyIdx, proxyA)
			continue
		}

		for i := range seen {
			seen[i] = false
		}

		minCell := sg.worldToCell(proxyA.Aabb.Min)
		maxCell := sg.worldToCell(proxyA.Aabb.Max)

		// Parcourir les cellules occupées par proxyA
		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					cellIdx := sg.hashCell(CellKey{x, y, z})

					for _, otherIdx := range sg.cells[cellIdx].proxyIndices {
						// ========== ORDRE DÉTERMINISTE ==========
						if otherIdx <= proxyIdx || seen[otherIdx] {
							continue // Évite doublons (A,B) et (B,A)
						}
						seen[otherIdx] = true

						proxyB := sg.proxies[otherIdx]
						if !pairWorthDispatching(proxyA.Body, proxyB.Body) {
							continue
						}

						if proxyA.Aabb.Overlaps(proxyB.Aabb) {
							pairs = append(pairs, Pair{BodyA: proxyA.Body, BodyB: proxyB.Body})
						}
					}
				}
			}
		}
	}

	return pairs
}

// appendUnboundedPairs pairs an infinite proxy against every later proxy
func (sg *SpatialGrid) appendUnboundedPairs(pairs []Pair, proxyIdx int, proxyA *BroadphaseProxy) []Pair {
	for otherIdx := proxyIdx + 1; otherIdx < len(sg.proxies); otherIdx++ {
		proxyB := sg.proxies[otherIdx]
		if proxyB.unbounded {
			continue
		}
		if !pairWorthDispatching(proxyA.Body, proxyB.Body) {
			continue
		}
		pairs = append(pairs, Pair{BodyA: proxyA.Body, BodyB: proxyB.Body})
	}

	return pairs
}

func pairWorthDispatching(bodyA, bodyB *actor.RigidBody) bool {
	if bodyA.IsStaticOrKinematic() && bodyB.IsStaticOrKinematic() {
		return false
	}
	if !bodyA.IsActive() && !bodyB.IsActive() {
		return false
	}
	return true
}

// ============================================================================
// Interne
// ============================================================================

func (sg *SpatialGrid) clear() {
	for i := range sg.cells {
		sg.cells[i].proxyIndices = sg.cells[i].proxyIndices[:0]
	}
}

func (sg *SpatialGrid) sortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].proxyIndices) > 1 {
			sort.Ints(sg.cells[i].proxyIndices)
		}
	}
}

// insert - Insère un proxy dans toutes les cellules qu'il occupe
func (sg *SpatialGrid) insert(proxyIndex int, proxy *BroadphaseProxy) {
	minCell := sg.worldToCell(proxy.Aabb.Min)
	maxCell := sg.worldToCell(proxy.Aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})

				sg.cells[cellIdx].proxyIndices = append(
					sg.cells[cellIdx].proxyIndices,
					proxyIndex,
				)
			}
		}
	}
}

// worldToCell - Convertit une position monde en coordonnées de cellule
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell - Hash une cellule vers un index dans l'array
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}

func isUnbounded(aabb actor.AABB) bool {
	return aabb.Max.X()-aabb.Min.X() > unboundedExtent ||
		aabb.Max.Y()-aabb.Min.Y() > unboundedExtent ||
		aabb.Max.Z()-aabb.Min.Z() > unboundedExtent
}
