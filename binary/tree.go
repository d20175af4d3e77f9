package binary

import (
	"fmt"

	"github.com/colorfulnotion/merkle/common"
)

// peak is one entry of the tree's peak stack: a maximal filled
// left-aligned subtree not yet combined into a larger one. Peaks are only
// ever combined with another peak of equal height; each carries its own
// leaves so Prove can rebuild a sibling path for any index after the fact
// without a separate node-storage layer. pos is the peak root's address in
// the implicit perfect tree: a freshly pushed leaf sits at
// PositionFromLeafIndex(n), and joining two equal-height peaks always joins
// Position siblings, so pos.Parent() is the joined peak's own position.
type peak struct {
	digest common.Digest
	leaves []common.Digest
	pos    Position
}

func (pk peak) height() uint32 {
	return pk.pos.Height()
}

// Tree is an append-only binary Merkle tree. Leaf hashes are retained in
// memory grouped by peak; there is no backing storage.Store, since the
// peak stack plus leaf hashes is already the entire state this engine
// needs.
type Tree struct {
	peaks       []peak
	leavesCount uint64
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{}
}

// Push appends a leaf, hashing it and folding it into the peak stack.
func (t *Tree) Push(leafData []byte) {
	d := common.HashLeaf(leafData)
	pos := PositionFromLeafIndex(t.leavesCount)
	t.peaks = append(t.peaks, peak{digest: d, leaves: []common.Digest{d}, pos: pos})
	t.joinEqualHeightPeaks()
	t.leavesCount++
}

// joinEqualHeightPeaks repeatedly merges the top two peaks while they share
// a height. Two adjacent equal-height peaks are always Position siblings,
// so the joined peak's position is their shared parent.
func (t *Tree) joinEqualHeightPeaks() {
	for len(t.peaks) >= 2 {
		n := len(t.peaks)
		left, right := t.peaks[n-2], t.peaks[n-1]
		if left.height() != right.height() {
			break
		}
		joined := peak{
			digest: common.HashNode(left.digest, right.digest),
			leaves: append(append([]common.Digest{}, left.leaves...), right.leaves...),
			pos:    left.pos.Parent(),
		}
		t.peaks = append(t.peaks[:n-2], joined)
	}
}

// Root returns the current tree root, or common.EmptySum() if no leaves
// have been pushed. An unbalanced tree's right subtree is always the
// smaller one, so the fold proceeds right to left.
func (t *Tree) Root() common.Digest {
	if len(t.peaks) == 0 {
		return common.EmptySum()
	}
	acc := t.peaks[len(t.peaks)-1].digest
	for i := len(t.peaks) - 2; i >= 0; i-- {
		acc = common.HashNode(t.peaks[i].digest, acc)
	}
	return acc
}

// LeavesCount returns the number of leaves pushed so far.
func (t *Tree) LeavesCount() uint64 {
	return t.leavesCount
}

// Prove returns the current root and the ordered (leaf-to-root) sibling
// digests needed to verify that the leaf at index is included under that
// root.
func (t *Tree) Prove(index uint64) (common.Digest, []common.Digest, error) {
	if index >= t.leavesCount {
		return common.Digest{}, nil, fmt.Errorf("%w: index %d, leaves %d", common.ErrInvalidProofIndex, index, t.leavesCount)
	}

	var leafStart uint64
	peakIdx := -1
	for i, pk := range t.peaks {
		covered := pk.pos.LeavesCount()
		if index >= leafStart && index < leafStart+covered {
			peakIdx = i
			break
		}
		leafStart += covered
	}
	if peakIdx == -1 {
		return common.Digest{}, nil, fmt.Errorf("%w: index %d not covered by any peak", common.ErrInvalidProofIndex, index)
	}

	proof := siblingsInPerfectSubtree(t.peaks[peakIdx].leaves, index-leafStart)

	// Past the covering peak's own subtree, the remaining steps to the
	// root are the right-fold over the other peaks: everything strictly
	// to the right of peakIdx folds into a single sibling digest, and
	// everything to its left contributes one sibling digest each.
	if peakIdx < len(t.peaks)-1 {
		acc := t.peaks[len(t.peaks)-1].digest
		for i := len(t.peaks) - 2; i > peakIdx; i-- {
			acc = common.HashNode(t.peaks[i].digest, acc)
		}
		proof = append(proof, acc)
	}
	for i := peakIdx - 1; i >= 0; i-- {
		proof = append(proof, t.peaks[i].digest)
	}

	return t.Root(), proof, nil
}

// siblingsInPerfectSubtree rebuilds the perfect binary subtree over leaves
// level by level, collecting the sibling digest at each level on the path
// from localIndex to the subtree root. pos walks the same Position.Parent()
// chain the tree itself climbs when joining peaks; flatIndexAt recovers
// which slot of the current level a position corresponds to.
func siblingsInPerfectSubtree(leaves []common.Digest, localIndex uint64) []common.Digest {
	level := leaves
	pos := PositionFromLeafIndex(localIndex)
	var proof []common.Digest
	for len(level) > 1 {
		proof = append(proof, level[flatIndexAt(pos.Sibling())])
		next := make([]common.Digest, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = common.HashNode(level[2*i], level[2*i+1])
		}
		level = next
		pos = pos.Parent()
	}
	return proof
}

// flatIndexAt recovers a position's left-to-right slot within its own
// height's level: the in-order index of the j-th node at height h is
// j*2^(h+1) + (2^h - 1).
func flatIndexAt(pos Position) uint64 {
	h := uint64(pos.Height())
	levelWidth := uint64(1) << (h + 1)
	return (pos.Index() - (levelWidth/2 - 1)) / levelWidth
}

// VerifyProof recomputes the root from leafData, index, and proof, and
// reports whether it matches root. leavesCount and index are both needed
// because the composition rule differs depending on whether the sibling at
// a given step is itself a balanced subtree peak (right-heavy fold) or an
// ordinary in-subtree sibling; recomputeRoot resolves that from the shape
// of leavesCount alone, mirroring how Prove derived the proof.
func VerifyProof(root common.Digest, leafData []byte, index uint64, leavesCount uint64, proof []common.Digest) bool {
	if index >= leavesCount {
		return false
	}
	got, ok := recomputeRoot(leafData, index, leavesCount, proof)
	return ok && got == root
}

// recomputeRoot walks the same peak boundaries Prove used, consuming
// proof entries in the same order, and folds them against the running
// digest starting from common.HashLeaf(leafData).
func recomputeRoot(leafData []byte, index uint64, leavesCount uint64, proof []common.Digest) (common.Digest, bool) {
	heights := peakHeights(leavesCount)

	var leafStart uint64
	peakIdx := -1
	for i, h := range heights {
		covered := uint64(1) << h
		if index >= leafStart && index < leafStart+covered {
			peakIdx = i
			break
		}
		leafStart += covered
	}
	if peakIdx == -1 {
		return common.Digest{}, false
	}

	acc := common.HashLeaf(leafData)
	localIndex := index - leafStart
	needed := int(heights[peakIdx])
	if len(proof) < needed {
		return common.Digest{}, false
	}
	for i := 0; i < needed; i++ {
		sib := proof[i]
		if localIndex&1 == 0 {
			acc = common.HashNode(acc, sib)
		} else {
			acc = common.HashNode(sib, acc)
		}
		localIndex >>= 1
	}
	proof = proof[needed:]

	if peakIdx < len(heights)-1 {
		if len(proof) < 1 {
			return common.Digest{}, false
		}
		acc = common.HashNode(acc, proof[0])
		proof = proof[1:]
	}
	for i := 0; i < len(proof); i++ {
		acc = common.HashNode(proof[i], acc)
	}

	return acc, true
}

// peakHeights derives the peak-height sequence for a leaf count without
// replaying any pushes: it is exactly the set bits of leavesCount in
// descending order, the same shape Push's equal-height-join loop converges
// to for any sequence of pushes.
func peakHeights(leavesCount uint64) []uint32 {
	var heights []uint32
	for h := uint32(63); ; h-- {
		if leavesCount&(1<<h) != 0 {
			heights = append(heights, h)
		}
		if h == 0 {
			break
		}
	}
	return heights
}
