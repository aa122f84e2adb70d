package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frankonly/blockseal/storage"
)

func testClock() func() time.Time {
	now := time.Unix(1600000000, 0)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func testChain(t *testing.T) (*Chain, storage.KvStore) {
	t.Helper()

	db, err := storage.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c, err := Open(db, WithClock(testClock()))
	require.NoError(t, err)
	return c, db
}

func testTransaction(handles ...string) Transaction {
	return Transaction{
		Handles:   handles,
		Width:     4,
		Height:    4,
		BlockSize: 2,
		Hasher:    "sha256",
		Salt:      []byte("0123456789abcdef"),
	}
}

func TestGenesis(t *testing.T) {
	r := require.New(t)

	c, _ := testChain(t)
	r.Equal(1, c.Len())

	genesis := c.Last()
	r.Equal(uint32(Version), genesis.Header.Version)
	r.Equal("0", genesis.Header.PrevBlockHash)
	r.Equal("0", genesis.Header.MerkleRoot)
	r.Empty(genesis.Transaction.Handles)
	r.NoError(c.Verify())
}

func TestHeaderHash(t *testing.T) {
	r := require.New(t)

	h := Header{Version: 1, PrevBlockHash: "0", MerkleRoot: "0", Time: 0, Nonce: 0}
	// md5("10000")
	r.Equal("b7a782741f667201b54880c925faec4b", HeaderHash(h))

	other := h
	other.Nonce = 1
	r.NotEqual(HeaderHash(h), HeaderHash(other))
}

func TestAddBlock(t *testing.T) {
	r := require.New(t)

	c, _ := testChain(t)
	genesis := c.Last()

	first, err := c.AddBlock("root1", testTransaction("a", "b"))
	r.NoError(err)
	r.Equal(genesis.Hash(), first.Header.PrevBlockHash)
	r.Equal("root1", first.Header.MerkleRoot)

	second, err := c.AddBlock("root2", testTransaction("c"))
	r.NoError(err)
	r.Equal(first.Hash(), second.Header.PrevBlockHash)
	r.Equal(3, c.Len())
	r.Equal(second, c.Last())

	got, err := c.Block(first.Hash())
	r.NoError(err)
	r.Equal(first, got)

	tx, err := c.Transactions(second.Hash())
	r.NoError(err)
	r.Equal([]string{"c"}, tx.Handles)
	r.Equal(uint32(2), tx.BlockSize)
	r.Equal([]byte("0123456789abcdef"), tx.Salt)

	r.NoError(c.Verify())
}

func TestAddBlockEmptyRoot(t *testing.T) {
	r := require.New(t)

	c, _ := testChain(t)
	_, err := c.AddBlock("", testTransaction("a"))
	r.True(errors.Is(err, ErrEmptyRoot))
	r.Equal(1, c.Len())
}

func TestAddBlockSameSecond(t *testing.T) {
	r := require.New(t)

	db, err := storage.NewMemLevelDB()
	r.NoError(err)
	defer db.Close()

	frozen := time.Unix(1600000000, 0)
	c, err := Open(db, WithClock(func() time.Time { return frozen }))
	r.NoError(err)

	a, err := c.AddBlock("root", testTransaction("a"))
	r.NoError(err)
	b, err := c.AddBlock("root", testTransaction("a"))
	r.NoError(err)
	r.NotEqual(a.Hash(), b.Hash())
	r.NoError(c.Verify())
}

func TestBlockNotFound(t *testing.T) {
	r := require.New(t)

	c, _ := testChain(t)
	_, err := c.Block("missing")
	r.True(errors.Is(err, ErrNotFound))

	_, err = c.Transactions("missing")
	r.True(errors.Is(err, ErrNotFound))
}

func TestBlocks(t *testing.T) {
	r := require.New(t)

	c, _ := testChain(t)
	for _, root := range []string{"r1", "r2", "r3"} {
		_, err := c.AddBlock(root, testTransaction(root))
		r.NoError(err)
	}

	roots := make([]string, 0)
	for i, b := range c.Blocks() {
		r.Equal(len(roots), i)
		roots = append(roots, b.Header.MerkleRoot)
	}
	r.Equal([]string{"0", "r1", "r2", "r3"}, roots)

	// early exit
	count := 0
	for range c.Blocks() {
		count++
		break
	}
	r.Equal(1, count)
}

func TestReopen(t *testing.T) {
	r := require.New(t)

	path := filepath.Join(t.TempDir(), "chain.db")

	db, err := storage.NewLevelDB(path)
	r.NoError(err)

	c, err := Open(db, WithClock(testClock()))
	r.NoError(err)
	added, err := c.AddBlock("root", testTransaction("x", "y", "z"))
	r.NoError(err)
	r.NoError(db.Close())

	db, err = storage.NewLevelDB(path)
	r.NoError(err)
	defer db.Close()

	reopened, err := Open(db)
	r.NoError(err)
	r.Equal(2, reopened.Len())
	r.Equal(added, reopened.Last())
	r.NoError(reopened.Verify())

	got, err := reopened.Block(added.Hash())
	r.NoError(err)
	r.Equal([]string{"x", "y", "z"}, got.Transaction.Handles)
}

func TestVerifyDetectsTampering(t *testing.T) {
	r := require.New(t)

	c, db := testChain(t)
	first, err := c.AddBlock("root1", testTransaction("a"))
	r.NoError(err)
	_, err = c.AddBlock("root2", testTransaction("b"))
	r.NoError(err)

	forged := first
	forged.Header.MerkleRoot = "forged"
	raw, err := forged.MarshalWire()
	r.NoError(err)
	r.NoError(db.Put(blockKey(1), raw))

	reopened, err := Open(db)
	r.NoError(err)
	r.True(errors.Is(reopened.Verify(), ErrBrokenLink))
}

func TestBlockEncoding(t *testing.T) {
	r := require.New(t)

	b := Block{
		Header:      Header{Version: 1, PrevBlockHash: "prev", MerkleRoot: "root", Time: 42, Nonce: 7},
		Transaction: testTransaction("h1", "h2"),
	}
	raw, err := b.MarshalWire()
	r.NoError(err)

	var decoded Block
	r.NoError(decoded.UnmarshalWire(raw))
	r.Equal(b, decoded)
	r.Equal(b.Hash(), decoded.Hash())

	r.Error(decoded.UnmarshalWire(raw[:len(raw)-1]))
}
