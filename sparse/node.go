// Package sparse implements the sparse Merkle tree: a full binary tree of
// height 256 whose leaves are addressed by the bit-path SHA-256(userKey),
// with every subtree holding no live leaves collapsed to a placeholder and
// every subtree holding exactly one live leaf collapsed to that leaf.
package sparse

import (
	"fmt"

	"github.com/colorfulnotion/merkle/common"
)

// NodeKind tags which of the three shapes a Node holds.
type NodeKind int

const (
	NodeKindPlaceholder NodeKind = iota
	NodeKindLeaf
	NodeKindInternal
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindPlaceholder:
		return "Placeholder"
	case NodeKindLeaf:
		return "Leaf"
	case NodeKindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Node is the closed tagged union {Placeholder, Leaf, Internal}. The zero
// value is the placeholder, so a never-stored subtree decodes correctly
// without a separate existence check.
type Node struct {
	Kind NodeKind

	// Leaf fields.
	LeafKey   common.Digest // SHA-256(userKey), the full 256-bit bit-path
	LeafValue []byte

	// Internal fields.
	Left, Right common.Digest
}

// Placeholder returns the zero-value placeholder node.
func Placeholder() Node {
	return Node{Kind: NodeKindPlaceholder}
}

// NewLeaf builds a leaf node for the given bit-path and value.
func NewLeaf(leafKey common.Digest, value []byte) Node {
	return Node{Kind: NodeKindLeaf, LeafKey: leafKey, LeafValue: value}
}

// NewInternal builds an internal node from its two children's digests.
func NewInternal(left, right common.Digest) Node {
	return Node{Kind: NodeKindInternal, Left: left, Right: right}
}

func (n Node) IsPlaceholder() bool { return n.Kind == NodeKindPlaceholder }
func (n Node) IsLeaf() bool        { return n.Kind == NodeKindLeaf }
func (n Node) IsInternal() bool    { return n.Kind == NodeKindInternal }

// Digest computes the node's content-addressed hash. Placeholders hash to
// the all-zero constant by definition; they are never written to storage,
// but Digest still needs to return a meaningful value for a child reference
// that is the placeholder.
func (n Node) Digest() common.Digest {
	switch n.Kind {
	case NodeKindPlaceholder:
		return common.ZeroSum()
	case NodeKindLeaf:
		valueHash := common.HashRaw(n.LeafValue)
		payload := append(append([]byte{}, n.LeafKey[:]...), valueHash[:]...)
		return common.HashLeaf(payload)
	case NodeKindInternal:
		return common.HashNode(n.Left, n.Right)
	default:
		panic(fmt.Sprintf("sparse: unknown node kind %d", n.Kind))
	}
}

// Encode serializes n into the wire form spec'd for storage payloads:
// leaf -> 0x00 || leafKey(32) || value; internal -> 0x01 || left(32) ||
// right(32). Placeholders are never encoded; calling Encode on one panics,
// since it indicates a bug in the engine (placeholders are a logical tag,
// not a storable shape).
func (n Node) Encode() []byte {
	switch n.Kind {
	case NodeKindLeaf:
		out := make([]byte, 0, 1+32+len(n.LeafValue))
		out = append(out, 0x00)
		out = append(out, n.LeafKey[:]...)
		out = append(out, n.LeafValue...)
		return out
	case NodeKindInternal:
		out := make([]byte, 0, 1+32+32)
		out = append(out, 0x01)
		out = append(out, n.Left[:]...)
		out = append(out, n.Right[:]...)
		return out
	default:
		panic("sparse: cannot encode a placeholder node")
	}
}

// Decode parses a payload previously produced by Encode. It returns
// common.ErrDeserialization for a payload too short to hold its tag's
// fixed fields, or with an unrecognized leading byte.
func Decode(payload []byte) (Node, error) {
	if len(payload) < 1 {
		return Node{}, fmt.Errorf("%w: empty payload", common.ErrDeserialization)
	}
	switch payload[0] {
	case 0x00:
		if len(payload) < 1+32 {
			return Node{}, fmt.Errorf("%w: leaf payload too short", common.ErrDeserialization)
		}
		leafKey := common.DigestFromBytes(payload[1:33])
		value := append([]byte{}, payload[33:]...)
		return NewLeaf(leafKey, value), nil
	case 0x01:
		if len(payload) != 1+32+32 {
			return Node{}, fmt.Errorf("%w: internal payload wrong length", common.ErrDeserialization)
		}
		left := common.DigestFromBytes(payload[1:33])
		right := common.DigestFromBytes(payload[33:65])
		return NewInternal(left, right), nil
	default:
		return Node{}, fmt.Errorf("%w: unknown node tag 0x%02x", common.ErrDeserialization, payload[0])
	}
}
