// Package merkle aggregates an ordered list of transaction ids into a single
// root hash.
package merkle

import "crypto/sha256"

type Node struct {
	Left  *Node
	Right *Node
	Hash  []byte
}

type Tree struct {
	Root *Node
}

func newLeaf(data []byte) *Node {
	h := sha256.Sum256(data)
	return &Node{Hash: h[:]}
}

func newParent(left, right *Node) *Node {
	h := sha256.New()
	h.Write(left.Hash)
	h.Write(right.Hash)

	return &Node{Left: left, Right: right, Hash: h.Sum(nil)}
}

// NewTree builds the tree bottom up. Leaves are the hashes of each entry in
// data; a level with an odd node count pairs its last node with itself.
func NewTree(data [][]byte) *Tree {
	if len(data) == 0 {
		return &Tree{}
	}

	level := make([]*Node, 0, len(data)+1)
	for _, d := range data {
		level = append(level, newLeaf(d))
	}

	for {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([]*Node, 0, len(level)/2+1)
		for i := 0; i < len(level); i += 2 {
			next = append(next, newParent(level[i], level[i+1]))
		}

		level = next
		if len(level) == 1 {
			break
		}
	}

	return &Tree{Root: level[0]}
}

// RootHash returns nil for an empty tree
func (t *Tree) RootHash() []byte {
	if t.Root == nil {
		return nil
	}

	return t.Root.Hash
}

func Root(data [][]byte) []byte {
	return NewTree(data).RootHash()
}
