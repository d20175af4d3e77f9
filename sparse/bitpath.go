package sparse

import "github.com/colorfulnotion/merkle/common"

// depth is the fixed bit-path length: a leaf key is exactly
// SHA-256(userKey), so every leaf sits at depth 256 from the root.
const depth = 256

// bitAt reports the bit at position i (0 = most significant, matching
// "depth from the root") of a 256-bit bit-path. Bits are read MSB-first:
// depth 0 is the root's first branching decision.
func bitAt(key common.Digest, i int) bool {
	byteIdx := i / 8
	bitIdx := 7 - uint(i%8)
	return (key[byteIdx]>>bitIdx)&1 == 1
}

// commonPrefixLen returns the number of leading bits at which a and b
// agree, i.e. the depth at which their bit-paths first diverge.
func commonPrefixLen(a, b common.Digest) int {
	for i := 0; i < depth; i++ {
		if bitAt(a, i) != bitAt(b, i) {
			return i
		}
	}
	return depth
}
