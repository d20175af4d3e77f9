package sparse

import (
	"fmt"

	"github.com/xlab/treeprint"

	"github.com/colorfulnotion/merkle/common"
)

// Sprint renders the tree's materialized nodes (placeholders are never
// stored, so the recursion below only ever visits real leaves and
// internals) as an indented tree, for debugging canonicalization bugs.
func (t *Tree) Sprint() (string, error) {
	root := treeprint.New()
	if t.root.IsZero() {
		root.SetValue("placeholder")
		return root.String(), nil
	}
	if err := t.appendNode(root, t.root); err != nil {
		return "", err
	}
	return root.String(), nil
}

func (t *Tree) appendNode(branch treeprint.Tree, digest common.Digest) error {
	node, err := t.fetchNode(digest)
	if err != nil {
		return err
	}
	switch node.Kind {
	case NodeKindLeaf:
		branch.SetValue(fmt.Sprintf("leaf %x -> %x", node.LeafKey, node.LeafValue))
	case NodeKindInternal:
		branch.SetValue(fmt.Sprintf("internal %x", digest))
		leftBranch := branch.AddBranch("left")
		if node.Left.IsZero() {
			leftBranch.SetValue("placeholder")
		} else if err := t.appendNode(leftBranch, node.Left); err != nil {
			return err
		}
		rightBranch := branch.AddBranch("right")
		if node.Right.IsZero() {
			rightBranch.SetValue("placeholder")
		} else if err := t.appendNode(rightBranch, node.Right); err != nil {
			return err
		}
	default:
		branch.SetValue("placeholder")
	}
	return nil
}
