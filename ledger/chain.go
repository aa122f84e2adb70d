// Package ledger keeps an append-only chain of blocks. Every block anchors the
// merkle root of a sealed image together with the leaf handles it was built
// over, and links to its predecessor by header hash.
package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/frankonly/blockseal/storage"
)

var (
	ErrEmptyRoot  = errors.New("empty merkle root")
	ErrNotFound   = errors.New("block not found")
	ErrBrokenLink = errors.New("broken block link")
)

// genesisHash is the prev hash and merkle root of the first block
const genesisHash = "0"

type Option func(*Chain)

// WithClock replaces time.Now for block timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		c.now = now
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

type Chain struct {
	mu     sync.RWMutex
	db     storage.KvStore
	blocks []Block
	index  map[string]int

	now    func() time.Time
	logger *zap.SugaredLogger
}

// Open loads the chain persisted in db, writing the genesis block if db is
// empty
func Open(db storage.KvStore, opts ...Option) (*Chain, error) {
	c := &Chain{
		db:     db,
		index:  make(map[string]int),
		now:    time.Now,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}

	size, err := c.loadSize()
	if err != nil {
		return nil, err
	}

	if size == 0 {
		genesis := Block{Header: Header{
			Version:       Version,
			PrevBlockHash: genesisHash,
			MerkleRoot:    genesisHash,
			Time:          uint32(c.now().Unix()),
		}}
		if err := c.append(genesis); err != nil {
			return nil, err
		}
		c.logger.Infow("genesis block created", "hash", genesis.Hash())

		return c, nil
	}

	for height := uint64(0); height < size; height++ {
		raw, err := db.Get(blockKey(height))
		if err != nil {
			return nil, fmt.Errorf("load block %d: %w", height, err)
		}

		var b Block
		if err := b.UnmarshalWire(raw); err != nil {
			return nil, fmt.Errorf("decode block %d: %w", height, err)
		}

		c.index[b.Hash()] = len(c.blocks)
		c.blocks = append(c.blocks, b)
	}
	c.logger.Infow("chain loaded", "blocks", size, "last", c.blocks[len(c.blocks)-1].Hash())

	return c, nil
}

func (c *Chain) loadSize() (uint64, error) {
	raw, err := c.db.Get(sizeKey())
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: size value of %d bytes", storage.ErrCorrupted, len(raw))
	}

	return binary.BigEndian.Uint64(raw), nil
}

// AddBlock appends a block anchoring root and tx after the current last block
func (c *Chain) AddBlock(root string, tx Transaction) (Block, error) {
	if root == "" {
		return Block{}, ErrEmptyRoot
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	b := Block{
		Header: Header{
			Version:       Version,
			PrevBlockHash: c.blocks[len(c.blocks)-1].Hash(),
			MerkleRoot:    root,
			Time:          uint32(c.now().Unix()),
		},
		Transaction: tx,
	}

	if err := c.append(b); err != nil {
		return Block{}, err
	}
	c.logger.Debugw("block added", "hash", b.Hash(), "height", len(c.blocks)-1, "leaves", len(tx.Handles))

	return b, nil
}

// append persists b at the next height. The caller holds the write lock.
func (c *Chain) append(b Block) error {
	raw, err := b.MarshalWire()
	if err != nil {
		return err
	}

	height := uint64(len(c.blocks))
	hash := b.Hash()

	puts := map[string][]byte{
		string(blockKey(height)): raw,
		string(hashKey(hash)):    encodeUint64(height),
		string(sizeKey()):        encodeUint64(height + 1),
	}
	if err := c.db.Write(puts); err != nil {
		return fmt.Errorf("persist block %d: %w", height, err)
	}

	c.index[hash] = len(c.blocks)
	c.blocks = append(c.blocks, b)

	return nil
}

// Block returns the block with the given header hash
func (c *Chain) Block(hash string) (Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[hash]
	if !ok {
		return Block{}, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	return c.blocks[i], nil
}

// Transactions returns the transaction of the block with the given hash
func (c *Chain) Transactions(hash string) (Transaction, error) {
	b, err := c.Block(hash)
	if err != nil {
		return Transaction{}, err
	}

	return b.Transaction, nil
}

func (c *Chain) Last() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blocks[len(c.blocks)-1]
}

// Len returns the number of blocks, genesis included
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.blocks)
}

// Blocks yields the blocks by height, genesis first. The chain is read as of
// the call; blocks added while iterating are not visited.
func (c *Chain) Blocks() iter.Seq2[int, Block] {
	c.mu.RLock()
	blocks := c.blocks[:len(c.blocks):len(c.blocks)]
	c.mu.RUnlock()

	return func(yield func(int, Block) bool) {
		for i, b := range blocks {
			if !yield(i, b) {
				return
			}
		}
	}
}

// Verify re-walks the prev hash links from genesis and checks the persisted
// hash index against them
func (c *Chain) Verify() error {
	var prev string
	for i, b := range c.Blocks() {
		if i == 0 {
			if b.Header.PrevBlockHash != genesisHash {
				return fmt.Errorf("%w: genesis prev hash %q", ErrBrokenLink, b.Header.PrevBlockHash)
			}
		} else if b.Header.PrevBlockHash != prev {
			return fmt.Errorf("%w: block %d points to %s, want %s", ErrBrokenLink, i, b.Header.PrevBlockHash, prev)
		}
		prev = b.Hash()

		height, err := c.db.Get(hashKey(prev))
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: block %d %s is not indexed", ErrBrokenLink, i, prev)
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(height, encodeUint64(uint64(i))) {
			return fmt.Errorf("%w: block %d %s is indexed at another height", ErrBrokenLink, i, prev)
		}
	}

	return nil
}
