package resolver

// disjointSet is a union-find forest over dense element indices. Roots are
// chosen by the caller (the earliest-created identity wins) rather than by
// rank, which keeps the partition and its representatives reproducible.
type disjointSet struct {
	parent []int
}

// add creates a singleton element and returns its index.
func (d *disjointSet) add() int {
	d.parent = append(d.parent, len(d.parent))
	return len(d.parent) - 1
}

// find returns the root of x, compressing the path behind it.
func (d *disjointSet) find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

// attach makes root the parent of child. Both must be roots.
func (d *disjointSet) attach(child, root int) {
	d.parent[child] = root
}
