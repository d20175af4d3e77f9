package sparse

import (
	"crypto/sha256"

	"github.com/colorfulnotion/merkle/common"
	"github.com/colorfulnotion/merkle/storage"
	"github.com/colorfulnotion/merkle/xlog"
)

// ancestor records one internal node visited while descending toward a
// leaf key: its own digest (the storage key to remove if it gets
// rebuilt or collapsed away), which side the descent took, and the
// sibling subtree's digest, which is never re-read during the rewind.
// The path is walked iteratively rather than recursively, so an insert or
// delete holds at most one bounded slice of ancestors at a time.
type ancestor struct {
	nodeDigest    common.Digest
	siblingDigest common.Digest
	wentRight     bool
}

// Tree is a sparse Merkle tree: a conceptual full binary tree of height
// 256 over storage-backed Node values, collapsing any all-empty subtree to
// the placeholder digest and any single-leaf subtree to that leaf.
type Tree struct {
	store storage.Store
	root  common.Digest
	log   xlog.Logger
}

// New returns an empty Tree backed by store.
func New(store storage.Store) *Tree {
	return &Tree{store: store, root: common.ZeroSum(), log: xlog.Default().With("component", "sparse")}
}

// Load restores a Tree from a previously computed root digest. It fails
// with common.ErrLoad (wrapped in a *common.loadError via
// common.NewLoadError) if root is neither the placeholder nor present in
// store.
func Load(store storage.Store, root common.Digest) (*Tree, error) {
	if !root.IsZero() {
		_, ok, err := store.Get(root)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.NewLoadError(root)
		}
	}
	return &Tree{store: store, root: root, log: xlog.Default().With("component", "sparse")}, nil
}

// Root returns the tree's current root digest.
func (t *Tree) Root() common.Digest {
	return t.root
}

// SetRoot overwrites the tree's root digest without touching storage,
// letting a caller point the same Tree at a different previously stored
// root.
func (t *Tree) SetRoot(root common.Digest) {
	t.root = root
}

// leafKeyFor maps a caller-supplied key to its fixed 256-bit bit-path.
// This is the plain SHA-256 of userKey, not common.HashLeaf's
// domain-separated variant: the bit-path is purely a routing address, not
// itself a content commitment.
func leafKeyFor(userKey []byte) common.Digest {
	return common.Digest(sha256.Sum256(userKey))
}

// descend walks from the root toward leafKey, stopping at a placeholder or
// a leaf node, and returns the ancestor path taken so far along with the
// terminal node (a zero Node with Kind Placeholder if descent bottomed out
// on an empty subtree).
func (t *Tree) descend(leafKey common.Digest) (terminal Node, ancestors []ancestor, err error) {
	current := t.root
	for i := 0; i <= depth; i++ {
		decoded, fetchErr := t.fetchNode(current)
		if fetchErr != nil {
			return Node{}, nil, fetchErr
		}
		if decoded.IsPlaceholder() || decoded.IsLeaf() {
			return decoded, ancestors, nil
		}
		// A node at depth 256 has no bit left to branch on, so it can only
		// be a placeholder or a leaf; an Internal node here is malformed.
		if i == depth {
			return Node{}, nil, common.NewLoadError(current)
		}

		wentRight := bitAt(leafKey, i)
		var child, sibling common.Digest
		if wentRight {
			child, sibling = decoded.Right, decoded.Left
		} else {
			child, sibling = decoded.Left, decoded.Right
		}
		ancestors = append(ancestors, ancestor{nodeDigest: current, siblingDigest: sibling, wentRight: wentRight})
		current = child
	}
	// Unreachable: the i == depth case above always returns.
	return Node{}, nil, common.NewLoadError(current)
}

func (t *Tree) insertNode(n Node) (common.Digest, error) {
	d := n.Digest()
	if err := t.store.Insert(d, n.Encode()); err != nil {
		return common.Digest{}, err
	}
	return d, nil
}

func (t *Tree) removeDigest(d common.Digest) error {
	if d.IsZero() {
		return nil
	}
	return t.store.Remove(d)
}

// Update inserts or replaces the binding userKey -> value and returns the
// new root. A zero-length value is treated as delete(userKey).
func (t *Tree) Update(userKey, value []byte) (common.Digest, error) {
	if len(value) == 0 {
		return t.Delete(userKey)
	}

	leafKey := leafKeyFor(userKey)
	terminal, ancestors, err := t.descend(leafKey)
	if err != nil {
		return common.Digest{}, err
	}

	newLeaf := NewLeaf(leafKey, value)
	newLeafDigest := newLeaf.Digest()
	if err := t.store.Insert(newLeafDigest, newLeaf.Encode()); err != nil {
		return common.Digest{}, err
	}

	var subtree common.Digest
	switch {
	case terminal.IsPlaceholder():
		subtree = newLeafDigest

	case terminal.IsLeaf() && terminal.LeafKey == leafKey:
		oldDigest := terminal.Digest()
		if oldDigest != newLeafDigest {
			if err := t.removeDigest(oldDigest); err != nil {
				return common.Digest{}, err
			}
		}
		subtree = newLeafDigest

	default: // terminal.IsLeaf() with a different bit-path: the two leaves diverge.
		oldLeafKey := terminal.LeafKey
		oldLeafDigest := terminal.Digest()
		diffDepth := commonPrefixLen(leafKey, oldLeafKey)

		var branch Node
		if bitAt(leafKey, diffDepth) {
			branch = NewInternal(oldLeafDigest, newLeafDigest)
		} else {
			branch = NewInternal(newLeafDigest, oldLeafDigest)
		}
		subtree, err = t.insertNode(branch)
		if err != nil {
			return common.Digest{}, err
		}

		for level := diffDepth - 1; level >= len(ancestors); level-- {
			var n Node
			if bitAt(leafKey, level) {
				n = NewInternal(common.ZeroSum(), subtree)
			} else {
				n = NewInternal(subtree, common.ZeroSum())
			}
			subtree, err = t.insertNode(n)
			if err != nil {
				return common.Digest{}, err
			}
		}
		// oldLeafDigest is re-parented, not orphaned, so it stays in storage.
	}

	for i := len(ancestors) - 1; i >= 0; i-- {
		anc := ancestors[i]
		var n Node
		if anc.wentRight {
			n = NewInternal(anc.siblingDigest, subtree)
		} else {
			n = NewInternal(subtree, anc.siblingDigest)
		}
		newDigest, err := t.insertNode(n)
		if err != nil {
			return common.Digest{}, err
		}
		if newDigest != anc.nodeDigest {
			if err := t.removeDigest(anc.nodeDigest); err != nil {
				return common.Digest{}, err
			}
		}
		subtree = newDigest
	}

	t.root = subtree
	return t.root, nil
}

// Delete removes userKey from the tree, collapsing ancestors back to
// canonical form, and returns the new root. Deleting an absent key is a
// no-op: the root is returned unchanged.
func (t *Tree) Delete(userKey []byte) (common.Digest, error) {
	leafKey := leafKeyFor(userKey)
	terminal, ancestors, err := t.descend(leafKey)
	if err != nil {
		return common.Digest{}, err
	}
	if !(terminal.IsLeaf() && terminal.LeafKey == leafKey) {
		return t.root, nil
	}

	if err := t.removeDigest(terminal.Digest()); err != nil {
		return common.Digest{}, err
	}

	current := Placeholder()
	for i := len(ancestors) - 1; i >= 0; i-- {
		anc := ancestors[i]
		siblingNode, err := t.fetchNode(anc.siblingDigest)
		if err != nil {
			return common.Digest{}, err
		}

		hasPlaceholder := current.IsPlaceholder() || siblingNode.IsPlaceholder()
		hasInternal := current.IsInternal() || siblingNode.IsInternal()

		if hasPlaceholder && !hasInternal {
			t.log.Trace("collapsing ancestor", "digest", anc.nodeDigest)
			if err := t.removeDigest(anc.nodeDigest); err != nil {
				return common.Digest{}, err
			}
			if current.IsPlaceholder() && !siblingNode.IsPlaceholder() {
				current = siblingNode
			}
			// current.IsLeaf() && siblingNode.IsPlaceholder(): current unchanged.
			// both placeholder: current stays Placeholder.
			continue
		}

		var n Node
		if anc.wentRight {
			n = NewInternal(anc.siblingDigest, current.Digest())
		} else {
			n = NewInternal(current.Digest(), anc.siblingDigest)
		}
		newDigest, err := t.insertNode(n)
		if err != nil {
			return common.Digest{}, err
		}
		if newDigest != anc.nodeDigest {
			if err := t.removeDigest(anc.nodeDigest); err != nil {
				return common.Digest{}, err
			}
		}
		current = n
	}

	t.root = current.Digest()
	return t.root, nil
}

// fetchNode resolves a digest to its Node value, treating the zero digest
// as the placeholder without touching storage.
func (t *Tree) fetchNode(d common.Digest) (Node, error) {
	if d.IsZero() {
		return Placeholder(), nil
	}
	payload, ok, err := t.store.Get(d)
	if err != nil {
		return Node{}, common.WrapStorageErr("get", d, err)
	}
	if !ok {
		return Node{}, common.NewLoadError(d)
	}
	return Decode(payload)
}
