package hashring

import (
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// DefaultVirtualNodes is the per-unit-weight virtual node count used
// when a ring is built with a non-positive setting.
const DefaultVirtualNodes = 100

// Ring is a consistent-hash ring over server IDs. Each server occupies
// virtualNodes*weight positions. Mutations build a fresh snapshot and
// publish it atomically, so lookups never take a lock and always observe
// a complete ring.
type Ring struct {
	virtualNodes int
	snapshot     atomic.Pointer[snapshot]
}

type snapshot struct {
	positions []uint64
	owners    map[uint64]string
	members   map[string]int // id -> weight
}

// New creates an empty ring with the given virtual node count per unit
// of weight.
func New(virtualNodes int) *Ring {
	if virtualNodes <= 0 {
		virtualNodes = DefaultVirtualNodes
	}

	r := &Ring{virtualNodes: virtualNodes}
	r.snapshot.Store(&snapshot{
		owners:  map[uint64]string{},
		members: map[string]int{},
	})
	return r
}

// Add places a server's virtual nodes on the ring. Re-adding an existing
// server first removes its old nodes, so a weight change takes effect.
// Callers serialize mutations; lookups proceed concurrently.
func (r *Ring) Add(id string, weight int) {
	if weight <= 0 {
		weight = 1
	}

	cur := r.snapshot.Load()
	members := copyMembers(cur.members)
	members[id] = weight
	r.snapshot.Store(build(members, r.virtualNodes))
}

// Remove deletes a server's virtual nodes; its key ranges fall to the
// next clockwise node. Removing an unknown server is a no-op.
func (r *Ring) Remove(id string) {
	cur := r.snapshot.Load()
	if _, ok := cur.members[id]; !ok {
		return
	}

	members := copyMembers(cur.members)
	delete(members, id)
	r.snapshot.Store(build(members, r.virtualNodes))
}

// Lookup returns the ID of the server owning the first virtual node at or
// after hash(key), wrapping to the first node. Returns "" on an empty ring.
func (r *Ring) Lookup(key string) string {
	snap := r.snapshot.Load()
	if len(snap.positions) == 0 {
		return ""
	}
	return snap.owners[snap.positions[snap.search(xxhash.Sum64String(key))]]
}

// LookupFunc walks the ring clockwise from hash(key) and returns the
// first owning server accepted by the predicate. Each distinct server is
// offered once. Returns "" when no member is accepted.
func (r *Ring) LookupFunc(key string, accept func(id string) bool) string {
	snap := r.snapshot.Load()
	if len(snap.positions) == 0 {
		return ""
	}

	start := snap.search(xxhash.Sum64String(key))
	seen := make(map[string]struct{}, len(snap.members))

	for i := 0; i < len(snap.positions); i++ {
		id := snap.owners[snap.positions[(start+i)%len(snap.positions)]]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if accept(id) {
			return id
		}
		if len(seen) == len(snap.members) {
			break
		}
	}
	return ""
}

// Len returns the number of member servers.
func (r *Ring) Len() int {
	return len(r.snapshot.Load().members)
}

// Members returns the IDs currently on the ring.
func (r *Ring) Members() []string {
	snap := r.snapshot.Load()
	ids := make([]string, 0, len(snap.members))
	for id := range snap.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *snapshot) search(hash uint64) int {
	idx := sort.Search(len(s.positions), func(i int) bool {
		return s.positions[i] >= hash
	})
	if idx == len(s.positions) {
		idx = 0
	}
	return idx
}

func build(members map[string]int, virtualNodes int) *snapshot {
	snap := &snapshot{
		owners:  make(map[uint64]string),
		members: members,
	}

	for id, weight := range members {
		for i := 0; i < virtualNodes*weight; i++ {
			hash := xxhash.Sum64String(id + "#" + strconv.Itoa(i))
			if _, taken := snap.owners[hash]; taken {
				continue
			}
			snap.owners[hash] = id
		}
	}

	snap.positions = make([]uint64, 0, len(snap.owners))
	for pos := range snap.owners {
		snap.positions = append(snap.positions, pos)
	}
	sort.Slice(snap.positions, func(i, j int) bool { return snap.positions[i] < snap.positions[j] })

	return snap
}

func copyMembers(in map[string]int) map[string]int {
	out := make(map[string]int, len(in)+1)
	for id, w := range in {
		out[id] = w
	}
	return out
}
