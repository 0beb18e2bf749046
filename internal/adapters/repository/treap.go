package repository

import "github.com/cespare/xxhash/v2"

// Treap ordered for the leaderboard: XP DESC, then user id ASC.
// "less" means ranks earlier, so in-order traversal yields the leaderboard
// from best to worst. Priorities are a hash of the user id, which keeps the
// tree balanced in expectation and the shape deterministic.

type node struct {
	id    string
	xp    int64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aXP, aID) should appear before (bXP, bID).
func less(aXP int64, aID string, bXP int64, bID string) bool {
	if aXP != bXP {
		return aXP > bXP
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, xp int64) *node {
	if n == nil {
		return &node{id: id, xp: xp, prio: xxhash.Sum64String(id), size: 1}
	}
	if less(xp, id, n.xp, n.id) {
		n.left = insert(n.left, id, xp)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, xp)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, xp int64) *node {
	if n == nil {
		return nil
	}
	switch {
	case xp == n.xp && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, xp)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, xp)
		}
	case less(xp, id, n.xp, n.id):
		n.left = deleteNode(n.left, id, xp)
	default:
		n.right = deleteNode(n.right, id, xp)
	}
	fix(n)
	return n
}

// position returns the 1-based in-order position of (id, xp), or 0 if absent.
func position(n *node, id string, xp int64) int {
	before := 0
	for n != nil {
		switch {
		case xp == n.xp && id == n.id:
			return before + nsize(n.left) + 1
		case less(xp, id, n.xp, n.id):
			n = n.left
		default:
			before += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}
