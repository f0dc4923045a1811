// Package vecforest implements a sequential forest representation optimized
// for depth-first traversal.
//
// Nodes are stored in pre-order: the first child of a node sits directly after
// it, and an entire subtree occupies one contiguous index range. Each node
// carries its child count, its branch stride (subtree size including itself)
// and the distance back to its parent (zero for roots). The container holds a
// forest — a concatenation of subtrees, each beginning with a root.
//
// Mutations shift the indices of later nodes, so external references into the
// forest should be by payload or re-found, never by cached index. The forest
// is not internally synchronized; callers must serialize mutation externally.
package vecforest

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/quillback/stockpile/resutils"
)

// NullIndex is returned by FindNodeIndex when no node holds the payload.
const NullIndex = -1

type node[P comparable] struct {
	numChildren  int
	branchStride int
	parentOfs    int
	payload      P
}

// Forest is a pre-order forest of payload nodes. The zero value is an empty
// forest ready for use. Payload equality identifies nodes, so payloads should
// be unique within a forest.
type Forest[P comparable] struct {
	nodes []node[P]
}

// New creates an empty forest.
func New[P comparable]() *Forest[P] {
	return &Forest[P]{}
}

// Size returns the total number of nodes in the forest.
func (f *Forest[P]) Size() int {
	return len(f.nodes)
}

// FindNodeIndex locates the node holding payload. O(N).
func (f *Forest[P]) FindNodeIndex(payload P) int {
	for i := range f.nodes {
		if f.nodes[i].payload == payload {
			return i
		}
	}
	return NullIndex
}

// Contains reports whether any node holds payload.
func (f *Forest[P]) Contains(payload P) bool {
	return f.FindNodeIndex(payload) != NullIndex
}

// PayloadAt returns a pointer to the payload stored at index. The pointer is
// invalidated by any subsequent mutation of the forest.
func (f *Forest[P]) PayloadAt(index int) *P {
	return &f.nodes[index].payload
}

// NodeInfoAt returns (children count, branch stride, parent offset) for the
// node at index.
func (f *Forest[P]) NodeInfoAt(index int) (numChildren, branchStride, parentOfs int) {
	n := &f.nodes[index]
	return n.numChildren, n.branchStride, n.parentOfs
}

// NodeInfo returns (children count, branch stride, parent offset) for the node
// holding payload. Panics when the payload is not present.
func (f *Forest[P]) NodeInfo(payload P) (numChildren, branchStride, parentOfs int) {
	return f.NodeInfoAt(f.mustFindIndex(payload))
}

// NumChildren returns the number of direct children of the node holding
// payload.
func (f *Forest[P]) NumChildren(payload P) int {
	n, _, _ := f.NodeInfo(payload)
	return n
}

// BranchStride returns the subtree size (including the node itself) of the
// node holding payload.
func (f *Forest[P]) BranchStride(payload P) int {
	_, s, _ := f.NodeInfo(payload)
	return s
}

// ParentOffset returns the distance back to the parent of the node holding
// payload; zero for roots.
func (f *Forest[P]) ParentOffset(payload P) int {
	_, _, p := f.NodeInfo(payload)
	return p
}

// IsRoot reports whether the node holding payload is a root.
func (f *Forest[P]) IsRoot(payload P) bool {
	return f.ParentOffset(payload) == 0
}

// IsLeaf reports whether the node holding payload has no children.
func (f *Forest[P]) IsLeaf(payload P) bool {
	return f.NumChildren(payload) == 0
}

// ParentIndexAt returns the index of the parent of the node at index. Panics
// when the node is a root.
func (f *Forest[P]) ParentIndexAt(index int) int {
	if f.nodes[index].parentOfs == 0 {
		panic("vecforest: root nodes have no parent")
	}
	return index - f.nodes[index].parentOfs
}

// Parent returns a pointer to the payload of the parent of the node holding
// payload. Panics when the node is a root or absent.
func (f *Forest[P]) Parent(payload P) *P {
	return &f.nodes[f.ParentIndexAt(f.mustFindIndex(payload))].payload
}

// IsDescendantOf reports whether the node holding payload lies in the subtree
// rooted at the node holding ancestor.
func (f *Forest[P]) IsDescendantOf(payload, ancestor P) bool {
	found := false
	f.Ascend(payload, func(p *P, index int) {
		if *p == payload {
			return
		}
		if *p == ancestor {
			found = true
		}
	})
	return found
}

// IsLastSiblingAt reports whether the node at index is the last among its
// siblings. For roots this means the last root of the forest.
func (f *Forest[P]) IsLastSiblingAt(index int) bool {
	n := &f.nodes[index]

	// Roots: last iff no further subtree follows this one
	if n.parentOfs == 0 {
		return index+n.branchStride >= len(f.nodes)
	}

	parentIndex := index - n.parentOfs
	parentEnd := parentIndex + f.nodes[parentIndex].branchStride
	return index+n.branchStride >= parentEnd
}

// IsLastSibling reports whether the node holding payload is the last among its
// siblings.
func (f *Forest[P]) IsLastSibling(payload P) bool {
	return f.IsLastSiblingAt(f.mustFindIndex(payload))
}

// InsertAsRoot appends a new root node at the end of the forest.
func (f *Forest[P]) InsertAsRoot(payload P) {
	f.nodes = append(f.nodes, node[P]{branchStride: 1, payload: payload})
	resutils.DebugValidate(f)
}

// Insert places a new node holding payload as the last-inserted (first in
// storage) child of the node holding parentPayload, directly after it.
// Returns false when the parent is not present.
func (f *Forest[P]) Insert(payload P, parentPayload P) bool {
	parentIndex := f.FindNodeIndex(parentPayload)
	if parentIndex == NullIndex {
		return false
	}

	// Grow the stride of every node whose branch spans the insertion point,
	// scanning backwards and stopping at this tree's root.
	for i := parentIndex; i >= 0; i-- {
		if f.nodes[i].branchStride > parentIndex-i {
			f.nodes[i].branchStride++
		}
		if f.nodes[i].parentOfs == 0 {
			break
		}
	}

	// Nodes after the parent whose parent lies at or before it now sit one
	// slot further from it; stop at the next root.
	for i := parentIndex + 1; i < len(f.nodes); i++ {
		if f.nodes[i].parentOfs == 0 {
			break
		}
		if f.nodes[i].parentOfs >= i-parentIndex {
			f.nodes[i].parentOfs++
		}
	}

	f.nodes[parentIndex].numChildren++
	f.nodes = slices.Insert(f.nodes, parentIndex+1, node[P]{
		numChildren:  0,
		branchStride: 1,
		parentOfs:    1,
		payload:      payload,
	})

	resutils.DebugValidate(f)
	return true
}

// EraseBranch removes the node holding payload together with its entire
// subtree. Erasing a root deletes its whole tree. Returns false when the
// payload is not present.
func (f *Forest[P]) EraseBranch(payload P) bool {
	index := f.FindNodeIndex(payload)
	if index == NullIndex {
		return false
	}
	f.eraseBranchAt(index)
	return true
}

func (f *Forest[P]) eraseBranchAt(index int) {
	stride := f.nodes[index].branchStride
	parentIndex := index - f.nodes[index].parentOfs

	// Shrink the stride of every ancestor branch spanning the erased range
	for i := parentIndex; ; i-- {
		if f.nodes[i].branchStride > parentIndex-i {
			f.nodes[i].branchStride -= stride
		}
		if f.nodes[i].parentOfs == 0 {
			break
		}
	}

	// Trailing nodes whose parent lies at or before the erased node's parent
	// move closer by the erased stride; stop at the next root.
	for i := index + stride; i < len(f.nodes); i++ {
		if f.nodes[i].parentOfs == 0 {
			break
		}
		if f.nodes[i].parentOfs >= i-parentIndex {
			f.nodes[i].parentOfs -= stride
		}
	}

	f.nodes[parentIndex].numChildren--
	f.nodes = slices.Delete(f.nodes, index, index+stride)

	resutils.DebugValidate(f)
}

// Reparent moves the subtree rooted at the node holding payload under the node
// holding parentPayload. The new parent must not be a descendant of the moved
// node; callers can check with IsDescendantOf. Sibling order within the moved
// subtree is not necessarily preserved.
func (f *Forest[P]) Reparent(payload P, parentPayload P) {
	if f.IsDescendantOf(parentPayload, payload) {
		panic("vecforest: reparenting under a descendant would form a cycle")
	}

	branch := f.detachBranch(payload)

	f.Insert(branch[0].payload, parentPayload)
	f.reinsertBranch(branch)
}

// Unparent detaches the subtree rooted at the node holding payload and
// reinserts it as a root at the end of the forest.
func (f *Forest[P]) Unparent(payload P) {
	branch := f.detachBranch(payload)

	f.InsertAsRoot(branch[0].payload)
	f.reinsertBranch(branch)
}

// detachBranch copies the subtree rooted at the node holding payload into a
// buffer and erases it from the forest. Buffered nodes keep their relative
// parent offsets so the subtree can be rebuilt.
func (f *Forest[P]) detachBranch(payload P) []node[P] {
	index := f.mustFindIndex(payload)
	stride := f.nodes[index].branchStride

	branch := make([]node[P], stride)
	copy(branch, f.nodes[index:index+stride])

	f.eraseBranchAt(index)
	return branch
}

func (f *Forest[P]) reinsertBranch(branch []node[P]) {
	for i := 1; i < len(branch); i++ {
		parent := &branch[i-branch[i].parentOfs]
		f.Insert(branch[i].payload, parent.payload)
	}
}

func (f *Forest[P]) mustFindIndex(payload P) int {
	index := f.FindNodeIndex(payload)
	if index == NullIndex {
		panic(fmt.Sprintf("vecforest: payload %v is not in the forest", payload))
	}
	return index
}
