// Package rbtree is the intrusive red-black tree toolkit shared by the CFS
// scheduler and the event-notification facility. It follows the classic
// Cormen/Leiserson algorithm, ported case-for-case from the source's
// rb_insert_color/rb_erase: the toolkit owns colouring and rotation, the
// caller owns position selection (it walks the tree comparing its own key
// and builds the new node before handing it to InsertFixup).
//
// Nodes are embedded by value inside client structs rather than allocated by
// the tree itself — the Go expression of "intrusive". Owner carries the
// client's own pointer back out of a Node so callers never need pointer
// arithmetic to recover it.
package rbtree

// Color is a node's red-black colour.
type Color bool

const (
	Red   Color = true
	Black Color = false
)

// Node is embedded inside any client struct that needs ordered-set
// membership in a Tree. The zero value is an unlinked BLACK node (Black is
// the zero Color); callers set Color to Red before InsertFixup.
type Node[T any] struct {
	Parent, Left, Right *Node[T]
	Color               Color
	Owner               T
}

// color reports n's colour, treating a nil node as BLACK (a nil child is a
// black leaf in the red-black sense).
func color[T any](n *Node[T]) Color {
	if n == nil {
		return Black
	}
	return n.Color
}

func isRed[T any](n *Node[T]) bool   { return n != nil && n.Color == Red }
func isBlack[T any](n *Node[T]) bool { return n == nil || n.Color == Black }

// Tree is an ordered set of Node[T], rooted at Root. The zero value is an
// empty tree.
type Tree[T any] struct {
	Root *Node[T]
}

func (t *Tree[T]) rotateLeft(n *Node[T]) {
	right := n.Right
	parent := n.Parent

	n.Right = right.Left
	if right.Left != nil {
		right.Left.Parent = n
	}

	right.Left = n
	right.Parent = parent

	if parent != nil {
		if parent.Left == n {
			parent.Left = right
		} else {
			parent.Right = right
		}
	} else {
		t.Root = right
	}
	n.Parent = right
}

func (t *Tree[T]) rotateRight(n *Node[T]) {
	left := n.Left
	parent := n.Parent

	n.Left = left.Right
	if left.Right != nil {
		left.Right.Parent = n
	}

	left.Right = n
	left.Parent = parent

	if parent != nil {
		if parent.Right == n {
			parent.Right = left
		} else {
			parent.Left = left
		}
	} else {
		t.Root = left
	}
	n.Parent = left
}

// InsertFixup restores red-black invariants after the caller has linked a
// new RED node into the tree via an ordinary BST insert (node's Parent,
// Left, Right and Color already set, Color == Red, Left == Right == nil).
func (t *Tree[T]) InsertFixup(node *Node[T]) {
	for node.Parent != nil && node.Parent.Color == Red {
		parent := node.Parent
		gparent := parent.Parent

		if parent == gparent.Left {
			uncle := gparent.Right
			if isRed(uncle) {
				uncle.Color = Black
				parent.Color = Black
				gparent.Color = Red
				node = gparent
				continue
			}

			if parent.Right == node {
				t.rotateLeft(parent)
				node, parent = parent, node
			}

			parent.Color = Black
			gparent.Color = Red
			t.rotateRight(gparent)
		} else {
			uncle := gparent.Left
			if isRed(uncle) {
				uncle.Color = Black
				parent.Color = Black
				gparent.Color = Red
				node = gparent
				continue
			}

			if parent.Left == node {
				t.rotateRight(parent)
				node, parent = parent, node
			}

			parent.Color = Black
			gparent.Color = Red
			t.rotateLeft(gparent)
		}
	}

	t.Root.Color = Black
}

// First returns the leftmost (minimum) node of the subtree rooted at n, or
// nil if n is nil. Call with t.Root to find the minimum of the whole tree.
func First[T any](n *Node[T]) *Node[T] {
	if n == nil {
		return nil
	}
	for n.Left != nil {
		n = n.Left
	}
	return n
}

// Next returns the in-order successor of n, or nil if n is the maximum.
func Next[T any](n *Node[T]) *Node[T] {
	if n == nil {
		return nil
	}
	if n.Right != nil {
		return First(n.Right)
	}
	parent := n.Parent
	for parent != nil && n == parent.Right {
		n = parent
		parent = parent.Parent
	}
	return parent
}

// eraseFixup restores invariants after a BLACK node physically departed,
// walking "double-black" up through the four sibling cases per side.
func (t *Tree[T]) eraseFixup(node, parent *Node[T]) {
	for node != t.Root && isBlack(node) {
		if parent.Left == node {
			sibling := parent.Right

			if isRed(sibling) {
				sibling.Color = Black
				parent.Color = Red
				t.rotateLeft(parent)
				sibling = parent.Right
			}

			if isBlack(sibling.Left) && isBlack(sibling.Right) {
				sibling.Color = Red
				node = parent
				parent = node.Parent
			} else {
				if isBlack(sibling.Right) {
					sibling.Left.Color = Black
					sibling.Color = Red
					t.rotateRight(sibling)
					sibling = parent.Right
				}

				sibling.Color = color(parent)
				parent.Color = Black
				sibling.Right.Color = Black
				t.rotateLeft(parent)
				node = t.Root
				break
			}
		} else {
			sibling := parent.Left

			if isRed(sibling) {
				sibling.Color = Black
				parent.Color = Red
				t.rotateRight(parent)
				sibling = parent.Left
			}

			if isBlack(sibling.Left) && isBlack(sibling.Right) {
				sibling.Color = Red
				node = parent
				parent = node.Parent
			} else {
				if isBlack(sibling.Left) {
					sibling.Right.Color = Black
					sibling.Color = Red
					t.rotateLeft(sibling)
					sibling = parent.Left
				}

				sibling.Color = color(parent)
				parent.Color = Black
				sibling.Left.Color = Black
				t.rotateRight(parent)
				node = t.Root
				break
			}
		}
	}

	if node != nil {
		node.Color = Black
	}
}

// Erase removes node from the tree and restores red-black invariants.
func (t *Tree[T]) Erase(node *Node[T]) {
	var child, parent *Node[T]
	nodeColor := node.Color

	if node.Left == nil {
		child = node.Right
		parent = node.Parent
		t.replaceChild(node, child, parent)
	} else if node.Right == nil {
		child = node.Left
		parent = node.Parent
		t.replaceChild(node, child, parent)
	} else {
		// Two children: splice with the in-order successor, taking its
		// colour slot, exactly as the source's rb_erase does.
		succ := First(node.Right)
		child = succ.Right
		nodeColor = succ.Color

		if succ.Parent == node {
			// succ is node's direct right child: once it takes node's
			// place, the gap left behind is directly under succ, so the
			// fixup must start there.
			parent = succ
		} else {
			succParent := succ.Parent
			if succParent.Left == succ {
				succParent.Left = child
			} else {
				succParent.Right = child
			}
			succ.Right = node.Right
			node.Right.Parent = succ
			parent = succParent
		}
		if child != nil {
			child.Parent = parent
		}

		succ.Parent = node.Parent
		succ.Color = node.Color
		succ.Left = node.Left
		node.Left.Parent = succ

		if node.Parent != nil {
			if node.Parent.Left == node {
				node.Parent.Left = succ
			} else {
				node.Parent.Right = succ
			}
		} else {
			t.Root = succ
		}
	}

	if nodeColor == Black {
		t.eraseFixup(child, parent)
	}
}

func (t *Tree[T]) replaceChild(node, child, parent *Node[T]) {
	if child != nil {
		child.Parent = parent
	}
	if parent != nil {
		if parent.Left == node {
			parent.Left = child
		} else {
			parent.Right = child
		}
	} else {
		t.Root = child
	}
}
