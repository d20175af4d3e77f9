package sparse

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/merkle/common"
	"github.com/colorfulnotion/merkle/storage"
)

func keyFor(i uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, i)
	return b
}

func mustHexDigest(t *testing.T, s string) common.Digest {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return common.DigestFromBytes(b)
}

func insertRange(t *testing.T, tree *Tree, lo, hi uint32) common.Digest {
	t.Helper()
	var root common.Digest
	var err error
	for i := lo; i < hi; i++ {
		root, err = tree.Update(keyFor(i), []byte("DATA"))
		require.NoError(t, err)
	}
	return root
}

func deleteRange(t *testing.T, tree *Tree, lo, hi uint32) common.Digest {
	t.Helper()
	var root common.Digest
	var err error
	for i := lo; i < hi; i++ {
		root, err = tree.Delete(keyFor(i))
		require.NoError(t, err)
	}
	return root
}

func TestRoot_EmptyTreeIsZeroSum(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	require.Equal(t, common.ZeroSum(), tree.Root())
}

func TestRoot_InsertZero(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	root := insertRange(t, tree, 0, 1)
	want := mustHexDigest(t, "39f36a7cb4dfb1b46f03d044265df6a491dffc1034121bc1071a34ddce9bb14b")
	require.Equal(t, want, root)
}

func TestRoot_InsertZeroOne(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	root := insertRange(t, tree, 0, 2)
	want := mustHexDigest(t, "8d0ae412ca9ca0afcb3217af8bcd5a673e798bd6fd1dfacad17711e883f494cb")
	require.Equal(t, want, root)
}

func TestRoot_InsertZeroToThree(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	root := insertRange(t, tree, 0, 3)
	want := mustHexDigest(t, "52295e42d8de2505fdc0cc825ff9fead419cbcf540d8b30c7c4b9c9b94c268b7")
	require.Equal(t, want, root)
}

func TestRoot_InsertZeroToFive(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	root := insertRange(t, tree, 0, 5)
	want := mustHexDigest(t, "108f731f2414e33ae57e584dc26bd276db07874436b2264ca6e520c658185c6b")
	require.Equal(t, want, root)
}

func TestRoot_InsertZeroToTen(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	root := insertRange(t, tree, 0, 10)
	want := mustHexDigest(t, "21ca4917e99da99a61de93deaf88c400d4c082991cb95779e444d43dd13e8849")
	require.Equal(t, want, root)
}

func TestRoot_InsertZeroToHundred(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	root := insertRange(t, tree, 0, 100)
	want := mustHexDigest(t, "82bf747d455a55e2f7044a03536fc43f1f55d43b855e72c0110c986707a23e4d")
	require.Equal(t, want, root)
}

func TestRoot_InsertThenDeleteSuffixMatchesShorterInsert(t *testing.T) {
	full := New(storage.NewMemoryStore())
	insertRange(t, full, 0, 10)
	gotRoot := deleteRange(t, full, 5, 10)

	short := New(storage.NewMemoryStore())
	wantRoot := insertRange(t, short, 0, 5)

	require.Equal(t, wantRoot, gotRoot)
}

func TestRoot_DeleteAbsentKeyIsNoOp(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	wantRoot := insertRange(t, tree, 0, 5)

	gotRoot, err := tree.Delete(keyFor(1024))
	require.NoError(t, err)
	require.Equal(t, wantRoot, gotRoot)
}

func TestRoot_DisjointRanges(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	insertRange(t, tree, 0, 5)
	insertRange(t, tree, 10, 15)
	root := insertRange(t, tree, 20, 25)

	want := mustHexDigest(t, "7e6643325042cfe0fc76626c043b97062af51c7e9fc56665f12b479034bce326")
	require.Equal(t, want, root)
}

// Scenario A: the same key->value mapping built two different ways yields
// the same root (history-independence).
func TestScenarioA_RoundTripHistoryIndependence(t *testing.T) {
	direct := New(storage.NewMemoryStore())
	insertRange(t, direct, 0, 5)
	insertRange(t, direct, 10, 15)
	directRoot := insertRange(t, direct, 20, 25)

	interleaved := New(storage.NewMemoryStore())
	insertRange(t, interleaved, 0, 10)
	deleteRange(t, interleaved, 5, 15)
	insertRange(t, interleaved, 10, 20)
	deleteRange(t, interleaved, 15, 25)
	insertRange(t, interleaved, 20, 30)
	interleavedRoot := deleteRange(t, interleaved, 25, 35)

	require.Equal(t, directRoot, interleavedRoot)
	want := mustHexDigest(t, "7e6643325042cfe0fc76626c043b97062af51c7e9fc56665f12b479034bce326")
	require.Equal(t, want, directRoot)
}

// Scenario B: insert then delete the same key returns to the empty root.
func TestScenarioB_NoOpDelete(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	_, err := tree.Update(keyFor(0), []byte("DATA"))
	require.NoError(t, err)

	root, err := tree.Delete(keyFor(0))
	require.NoError(t, err)
	require.Equal(t, common.ZeroSum(), root)
}

// Scenario C: inserting the same key/value twice is idempotent and leaves
// exactly one leaf node in storage.
func TestScenarioC_UpdateReplacesIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	tree := New(store)

	root1, err := tree.Update(keyFor(0), []byte("DATA"))
	require.NoError(t, err)
	lenAfterFirst := store.Len()

	root2, err := tree.Update(keyFor(0), []byte("DATA"))
	require.NoError(t, err)

	require.Equal(t, root1, root2)
	require.Equal(t, lenAfterFirst, store.Len())
	require.Equal(t, 1, store.Len())
}

func TestUpdate_EmptyValueIsDelete(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	_, err := tree.Update(keyFor(0), []byte("DATA"))
	require.NoError(t, err)

	root, err := tree.Update(keyFor(0), []byte{})
	require.NoError(t, err)
	require.Equal(t, common.ZeroSum(), root)
}

func TestUpdate_DeleteThenReinsertRestoresRoot(t *testing.T) {
	tree := New(storage.NewMemoryStore())
	root1, err := tree.Update(keyFor(0), []byte("DATA"))
	require.NoError(t, err)

	_, err = tree.Delete(keyFor(0))
	require.NoError(t, err)

	root2, err := tree.Update(keyFor(0), []byte("DATA"))
	require.NoError(t, err)
	require.Equal(t, root1, root2)
}

func TestLoad_RejectsUnknownRoot(t *testing.T) {
	_, err := Load(storage.NewMemoryStore(), common.HashLeaf([]byte("nope")))
	require.ErrorIs(t, err, common.ErrLoad)
}

func TestLoad_AcceptsPlaceholderRoot(t *testing.T) {
	tree, err := Load(storage.NewMemoryStore(), common.ZeroSum())
	require.NoError(t, err)
	require.Equal(t, common.ZeroSum(), tree.Root())
}

func TestLoad_RestoresAnExistingTree(t *testing.T) {
	store := storage.NewMemoryStore()
	built := New(store)
	root, err := built.Update(keyFor(0), []byte("DATA"))
	require.NoError(t, err)

	loaded, err := Load(store, root)
	require.NoError(t, err)

	newRoot, err := loaded.Update(keyFor(1), []byte("DATA"))
	require.NoError(t, err)

	independent := New(storage.NewMemoryStore())
	insertRange(t, independent, 0, 1)
	wantRoot, err := independent.Update(keyFor(1), []byte("DATA"))
	require.NoError(t, err)
	require.Equal(t, wantRoot, newRoot)
}
