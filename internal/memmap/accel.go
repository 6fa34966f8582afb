package memmap

import "github.com/google/btree"

// vmbEntry is one indexed VMB, keyed by its starting virtual page.
type vmbEntry struct {
	index     int // position within the map's VMB array
	startPage uint32
	endPage   uint32 // exclusive
	vmb       VMB
}

func vmbLess(a, b vmbEntry) bool { return a.startPage < b.startPage }

// VMBIndex accelerates "which VMB covers virtual page P" for maps with many
// VMBs. gVisor keeps its memory-region map in a B-tree for exactly the same
// reason (github.com/google/btree, used generically here as BTreeG); a
// linear scan of spec §4.2's "walks the map's VMB list" is fine for the
// handful of VMBs a small map has, but a map with hundreds of regions would
// make every demand fault O(n). The index is built eagerly, once per map,
// each time svc.Dispatcher.SetVMBs records that map's VMB array.
type VMBIndex struct {
	tree *btree.BTreeG[vmbEntry]
}

// NewVMBIndex builds an index over vmbs (in on-heap array order, terminated
// implicitly by len(vmbs) or an explicit zero-PageCount terminator).
func NewVMBIndex(vmbs []VMB) *VMBIndex {
	t := btree.NewG(32, vmbLess)
	for i, v := range vmbs {
		if v.Terminator() {
			break
		}
		t.ReplaceOrInsert(vmbEntry{index: i, startPage: v.StartPage, endPage: v.EndPage(), vmb: v})
	}
	return &VMBIndex{tree: t}
}

// Lookup returns the VMB covering virtual page, and its index within the
// map's array, or ok=false if no VMB covers it.
func (idx *VMBIndex) Lookup(page uint32) (vmb VMB, index int, ok bool) {
	var found vmbEntry
	hit := false
	idx.tree.DescendLessOrEqual(vmbEntry{startPage: page}, func(e vmbEntry) bool {
		found = e
		hit = true
		return false // only need the closest start <= page
	})
	if !hit || page >= found.endPage {
		return VMB{}, 0, false
	}
	return found.vmb, found.index, true
}

// LookupLinear is the fallback scan used when no index has been built: a
// direct expression of spec §4.2/§4.4's "walks the map's VMB list ... for
// one whose virtual page interval contains" the faulting page.
func LookupLinear(vmbs []VMB, page uint32) (vmb VMB, index int, ok bool) {
	for i, v := range vmbs {
		if v.Terminator() {
			break
		}
		if page >= v.StartPage && page < v.EndPage() {
			return v, i, true
		}
	}
	return VMB{}, 0, false
}
