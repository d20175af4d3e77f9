package sparse

import (
	"crypto/sha256"

	"github.com/colorfulnotion/merkle/common"
	"github.com/colorfulnotion/merkle/storage"
	"github.com/colorfulnotion/merkle/xlog"
)

// Proof is a membership proof for a single key: the sibling digests from
// the leaf's depth up to the root, leaf-to-root order (matching the
// binary package's convention), plus a bitmap marking which siblings are
// the placeholder so a compact wire form can omit them.
type Proof struct {
	Siblings      []common.Digest
	PlaceholderAt []bool
}

// Prove walks from root to the leaf addressed by userKey and returns the
// sibling digests needed to verify it, deepest-first.
func Prove(store storage.Store, root common.Digest, userKey []byte) (*Proof, error) {
	tree := &Tree{store: store, root: root, log: xlog.Discard()}
	leafKey := leafKeyFor(userKey)
	_, ancestors, err := tree.descend(leafKey)
	if err != nil {
		return nil, err
	}

	proof := &Proof{
		Siblings:      make([]common.Digest, len(ancestors)),
		PlaceholderAt: make([]bool, len(ancestors)),
	}
	for i, anc := range ancestors {
		depthFromLeaf := len(ancestors) - 1 - i
		proof.Siblings[depthFromLeaf] = anc.siblingDigest
		proof.PlaceholderAt[depthFromLeaf] = anc.siblingDigest.IsZero()
	}
	return proof, nil
}

// Verify reports whether the proof demonstrates that userKey maps to
// value under root. It reconstructs the leaf digest and folds the sibling
// list upward using the bit-path's direction at each level.
func (p *Proof) Verify(root common.Digest, userKey, value []byte) bool {
	leafKey := common.Digest(sha256.Sum256(userKey))
	leaf := NewLeaf(leafKey, value)
	acc := leaf.Digest()

	depth := len(p.Siblings)
	for i := 0; i < depth; i++ {
		level := depth - 1 - i
		sibling := p.Siblings[i]
		if bitAt(leafKey, level) {
			acc = common.HashNode(sibling, acc)
		} else {
			acc = common.HashNode(acc, sibling)
		}
	}
	return acc == root
}
