// Package merkle builds binary hash trees over ordered leaf digests and
// compares two trees leaf by leaf.
//
// Odd levels pair their last node with itself. The duplicated right child is
// recorded as a mirror of the left one: it takes part in the parent digest
// but covers no leaves of its own, so a tree over n leaves always reports n
// leaves and is never walked twice through the same subtree.
package merkle

import (
	"errors"
	"iter"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/frankonly/blockseal/crypto"
)

var (
	ErrNoLeaves = errors.New("no leaves")
	ErrNoHasher = errors.New("no hash function")
)

// none marks an absent child
const none = -1

// levels narrower than this are hashed on the calling goroutine
const parallelThreshold = 64

type node struct {
	digest crypto.Digest
	leaves int
	left   int
	right  int
	mirror bool
}

func (n *node) isLeaf() bool {
	return n.left == none
}

// Node is a read-only view of a tree node visited by a traversal
type Node struct {
	Digest crypto.Digest
	// Leaves is the number of leaves under the node, 1 for a leaf
	Leaves int
	// Offset is the position of the first leaf under the node
	Offset int
	Depth  int
	Leaf   bool
}

// Tree is an immutable merkle tree. Nodes live in a single arena: the leaves
// first, in order, then every upper level. A nil *Tree is the empty tree.
type Tree struct {
	hasher crypto.Hasher
	nodes  []node
	root   int
	depth  int
}

// Build builds a tree bottom-up from the ordered leaf digests
func Build(h crypto.Hasher, leaves []crypto.Digest) (*Tree, error) {
	if h == nil {
		return nil, ErrNoHasher
	}
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	t := &Tree{
		hasher: h,
		nodes:  make([]node, 0, 2*len(leaves)+64),
	}

	level := make([]int, len(leaves))
	for i, digest := range leaves {
		t.nodes = append(t.nodes, node{digest: digest, leaves: 1, left: none, right: none})
		level[i] = i
	}

	for len(level) > 1 {
		level = t.buildLevel(level)
		t.depth++
	}
	t.root = level[0]

	return t, nil
}

// FromContents hashes every payload into a leaf and builds the tree
func FromContents(h crypto.Hasher, contents [][]byte) (*Tree, error) {
	if h == nil {
		return nil, ErrNoHasher
	}
	if len(contents) == 0 {
		return nil, ErrNoLeaves
	}

	leaves := make([]crypto.Digest, len(contents))
	parallel(len(contents), func(i int) {
		leaves[i] = h.Sum(contents[i])
	})

	return Build(h, leaves)
}

// FromStrings hashes the UTF-8 bytes of every string into a leaf and builds
// the tree
func FromStrings(h crypto.Hasher, contents []string) (*Tree, error) {
	if h == nil {
		return nil, ErrNoHasher
	}
	if len(contents) == 0 {
		return nil, ErrNoLeaves
	}

	leaves := make([]crypto.Digest, len(contents))
	parallel(len(contents), func(i int) {
		leaves[i] = h.Sum([]byte(contents[i]))
	})

	return Build(h, leaves)
}

func (t *Tree) buildLevel(level []int) []int {
	base := len(t.nodes)
	parents := make([]int, (len(level)+1)/2)
	t.nodes = append(t.nodes, make([]node, len(parents))...)

	parallel(len(parents), func(p int) {
		left := level[2*p]
		right, mirror := left, true
		if 2*p+1 < len(level) {
			right, mirror = level[2*p+1], false
		}

		parent := &t.nodes[base+p]
		parent.left = left
		parent.right = right
		parent.mirror = mirror
		parent.leaves = t.nodes[left].leaves
		if !mirror {
			parent.leaves += t.nodes[right].leaves
		}
		parent.digest = crypto.HashNodes(t.hasher, t.nodes[left].digest, t.nodes[right].digest)

		parents[p] = base + p
	})

	return parents
}

// Empty reports whether the tree has no leaves
func (t *Tree) Empty() bool {
	return t == nil || len(t.nodes) == 0
}

// Root returns the root digest, false if the tree is empty
func (t *Tree) Root() (crypto.Digest, bool) {
	if t.Empty() {
		return crypto.Digest{}, false
	}

	return t.nodes[t.root].digest, true
}

// RootHex returns the root digest as lowercase hex, "" if the tree is empty
func (t *Tree) RootHex() string {
	root, ok := t.Root()
	if !ok {
		return ""
	}

	return root.Hex()
}

// LeafCount returns the number of leaves the tree was built from
func (t *Tree) LeafCount() int {
	if t.Empty() {
		return 0
	}

	return t.nodes[t.root].leaves
}

// Depth returns the number of levels above the leaves
func (t *Tree) Depth() int {
	if t.Empty() {
		return 0
	}

	return t.depth
}

// Hasher returns the hash function the tree was built with
func (t *Tree) Hasher() crypto.Hasher {
	if t == nil {
		return nil
	}

	return t.hasher
}

// Leaves yields the leaf digests in order
func (t *Tree) Leaves() iter.Seq2[int, crypto.Digest] {
	return func(yield func(int, crypto.Digest) bool) {
		for i := 0; i < t.LeafCount(); i++ {
			if !yield(i, t.nodes[i].digest) {
				return
			}
		}
	}
}

// Nodes yields every node in pre-order: the node, its left subtree, then its
// right subtree. Mirrored right children are not visited. The sequence can be
// ranged over any number of times.
func (t *Tree) Nodes() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		if t.Empty() {
			return
		}

		type frame struct {
			index  int
			depth  int
			offset int
		}

		stack := make([]frame, 0, t.depth+1)
		stack = append(stack, frame{index: t.root})

		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			n := &t.nodes[f.index]
			if !yield(Node{Digest: n.digest, Leaves: n.leaves, Offset: f.offset, Depth: f.depth, Leaf: n.isLeaf()}) {
				return
			}

			if n.isLeaf() {
				continue
			}

			// right first so that left pops first
			if !n.mirror {
				stack = append(stack, frame{index: n.right, depth: f.depth + 1, offset: f.offset + t.nodes[n.left].leaves})
			}
			stack = append(stack, frame{index: n.left, depth: f.depth + 1, offset: f.offset})
		}
	}
}

// parallel calls fn for every index in [0, n), fanning out over GOMAXPROCS
// goroutines when n is large enough to pay for it
func parallel(n int, fn func(i int)) {
	if n < parallelThreshold {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers

	g := new(errgroup.Group)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}

	// fn cannot fail
	_ = g.Wait()
}
