package merkle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLeafCountMismatch = errors.New("leaf count mismatch")
	ErrHasherMismatch    = errors.New("hasher mismatch")
)

// Flag marks a single leaf position as matching or mismatching
type Flag uint8

const (
	Match    Flag = 0
	Mismatch Flag = 1
)

// TamperVector holds one flag per leaf of the reference tree, in leaf order
type TamperVector []Flag

// Tampered returns the positions flagged as mismatching
func (v TamperVector) Tampered() []int {
	positions := make([]int, 0)
	for i, flag := range v {
		if flag == Mismatch {
			positions = append(positions, i)
		}
	}

	return positions
}

// Count returns the number of mismatching positions
func (v TamperVector) Count() int {
	count := 0
	for _, flag := range v {
		if flag == Mismatch {
			count++
		}
	}

	return count
}

// Clean reports whether no position mismatches
func (v TamperVector) Clean() bool {
	return v.Count() == 0
}

func (v TamperVector) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, flag := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('0' + byte(flag))
	}
	b.WriteByte(']')

	return b.String()
}

// Diff compares suspect against reference and flags every leaf whose digest
// differs. Subtrees with equal digests are skipped as a whole. Both trees must
// hold the same number of leaves and use the same hash function; different
// image geometries have to be caught before building the trees.
func Diff(reference, suspect *Tree) (TamperVector, error) {
	if reference.LeafCount() != suspect.LeafCount() {
		return nil, fmt.Errorf("%w: %d != %d", ErrLeafCountMismatch, reference.LeafCount(), suspect.LeafCount())
	}

	if reference.Empty() {
		return TamperVector{}, nil
	}

	if reference.hasher.Name() != suspect.hasher.Name() {
		return nil, fmt.Errorf("%w: %s != %s", ErrHasherMismatch, reference.hasher.Name(), suspect.hasher.Name())
	}

	d := newDiffer(reference, suspect)
	d.compare(reference.root, suspect.root)

	return d.vector, nil
}

type differ struct {
	a, b    *Tree
	vector  TamperVector
	visited int
}

func newDiffer(a, b *Tree) *differ {
	return &differ{a: a, b: b, vector: make(TamperVector, 0, a.LeafCount())}
}

// compare walks a node of the reference tree and its counterpart of the
// suspect tree. The vector only ever grows by leaves of the reference side,
// so its final length is the reference leaf count whatever the suspect shape.
func (d *differ) compare(a, b int) {
	d.visited++

	// no reference leaves here, nothing to report
	if a == none {
		return
	}

	na := &d.a.nodes[a]
	if b == none {
		d.emit(Mismatch, na.leaves)
		return
	}

	nb := &d.b.nodes[b]
	switch {
	case na.digest == nb.digest:
		d.emit(Match, na.leaves)
	case na.isLeaf() || nb.isLeaf():
		// two different leaves, or a leaf facing a subtree
		d.emit(Mismatch, na.leaves)
	default:
		d.compare(na.left, nb.left)
		if na.mirror {
			return
		}

		right := nb.right
		if nb.mirror {
			right = none
		}
		d.compare(na.right, right)
	}
}

func (d *differ) emit(flag Flag, n int) {
	for i := 0; i < n; i++ {
		d.vector = append(d.vector, flag)
	}
}
