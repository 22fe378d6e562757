package resolver

import "testing"

func TestDisjointSet_FindCompressesPath(t *testing.T) {
	var d disjointSet
	for i := 0; i < 4; i++ {
		d.add()
	}
	d.attach(3, 2)
	d.attach(2, 1)
	d.attach(1, 0)

	if got := d.find(3); got != 0 {
		t.Fatalf("find(3) = %d, want 0", got)
	}
	for _, x := range []int{1, 2, 3} {
		if d.parent[x] != 0 {
			t.Errorf("parent[%d] = %d after compression, want 0", x, d.parent[x])
		}
	}
}

func TestDisjointSet_SingletonIsOwnRoot(t *testing.T) {
	var d disjointSet
	x := d.add()
	if d.find(x) != x {
		t.Fatalf("singleton %d is not its own root", x)
	}
}
