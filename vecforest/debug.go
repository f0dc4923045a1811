package vecforest

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Validate performs internal consistency checks on the forest structure:
// every stride covers exactly the node plus its children's strides, every
// parent offset points backwards into the parent's branch, and the first node
// (if any) is a root.
func (f *Forest[P]) Validate() error {
	if len(f.nodes) > 0 && f.nodes[0].parentOfs != 0 {
		return errors.New("first node is not a root")
	}

	for i := range f.nodes {
		n := &f.nodes[i]

		if n.branchStride < 1 {
			return errors.Errorf("node %d has branch stride %d", i, n.branchStride)
		}
		if i+n.branchStride > len(f.nodes) {
			return errors.Errorf("node %d's branch extends past the end of the forest", i)
		}

		childIndex := i + 1
		strideSum := 0
		for c := 0; c < n.numChildren; c++ {
			if childIndex >= len(f.nodes) {
				return errors.Errorf("node %d claims %d children but the forest ends early", i, n.numChildren)
			}
			if f.nodes[childIndex].parentOfs != childIndex-i {
				return errors.Errorf("node %d's child %d has parent offset %d, want %d",
					i, childIndex, f.nodes[childIndex].parentOfs, childIndex-i)
			}
			strideSum += f.nodes[childIndex].branchStride
			childIndex += f.nodes[childIndex].branchStride
		}
		if n.branchStride != 1+strideSum {
			return errors.Errorf("node %d has stride %d but its children sum to %d", i, n.branchStride, 1+strideSum)
		}

		if n.parentOfs > 0 {
			parentIndex := i - n.parentOfs
			if parentIndex < 0 {
				return errors.Errorf("node %d's parent offset %d points before the forest", i, n.parentOfs)
			}
			if parentIndex+f.nodes[parentIndex].branchStride <= i {
				return errors.Errorf("node %d lies outside its parent %d's branch", i, parentIndex)
			}
		}
	}

	return nil
}

// String renders the forest as an indented pre-order listing, one node per
// line with its structural fields. Intended for debugging.
func (f *Forest[P]) String() string {
	var sb strings.Builder

	f.TraverseDepthFirstWithLevel(func(payload *P, index, level int) {
		n := &f.nodes[index]
		fmt.Fprintf(&sb, "%s%v (children=%d stride=%d parent_ofs=%d)\n",
			strings.Repeat("  ", level), *payload, n.numChildren, n.branchStride, n.parentOfs)
	})

	return sb.String()
}
