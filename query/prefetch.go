package query

import (
	"sort"
	"strings"
)

// Semantics of a prefetch node
type Semantics int

// Prefetch semantics. Undefined nodes are routed like disjoint ones.
const (
	Undefined Semantics = iota
	Joint
	Disjoint
	DisjointByID
)

func (s Semantics) String() string {
	switch s {
	case Joint:
		return "joint"
	case Disjoint:
		return "disjoint"
	case DisjointByID:
		return "disjointById"
	}
	return "undefined"
}

// ParseSemantics reads the semantics names used in mapping files
func ParseSemantics(name string) Semantics {
	switch name {
	case "joint":
		return Joint
	case "disjoint":
		return Disjoint
	case "disjointById":
		return DisjointByID
	}
	return Undefined
}

/*
PrefetchTreeNode is one relationship of a prefetch tree. The root has no name
and is phantom, like every intermediate node that was only created so a deeper
node has a parent.
*/
type PrefetchTreeNode struct {
	Name      string
	Phantom   bool
	Semantics Semantics
	parent    *PrefetchTreeNode
	children  []*PrefetchTreeNode
}

// NewPrefetchTree returns an empty root
func NewPrefetchTree() *PrefetchTreeNode {
	return &PrefetchTreeNode{Phantom: true}
}

// Parent returns the parent node, nil for the root
func (n *PrefetchTreeNode) Parent() *PrefetchTreeNode {
	return n.parent
}

// Children returns the child nodes in name order
func (n *PrefetchTreeNode) Children() []*PrefetchTreeNode {
	return n.children
}

// IsLeaf is true for a node without children
func (n *PrefetchTreeNode) IsLeaf() bool {
	return len(n.children) == 0
}

// Path returns the dotted path from the root
func (n *PrefetchTreeNode) Path() string {
	return n.PathFrom(nil)
}

// PathFrom returns the dotted path from ancestor. A nil ancestor is the root.
func (n *PrefetchTreeNode) PathFrom(ancestor *PrefetchTreeNode) string {
	var names []string
	for node := n; node != nil && node != ancestor && node.parent != nil; node = node.parent {
		names = append(names, node.Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, ".")
}

func (n *PrefetchTreeNode) child(name string) *PrefetchTreeNode {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Node finds the node at path, or nil
func (n *PrefetchTreeNode) Node(path string) *PrefetchTreeNode {
	if path == "" {
		return nil
	}
	node := n
	for _, name := range strings.Split(path, ".") {
		node = node.child(name)
		if node == nil {
			return nil
		}
	}
	return node
}

/*
AddPath adds a real node at path with the given semantics. Missing
intermediate nodes are created phantom. An existing node at path becomes real
and takes the new semantics.
*/
func (n *PrefetchTreeNode) AddPath(path string, semantics Semantics) *PrefetchTreeNode {
	if path == "" {
		return nil
	}
	node := n
	for _, name := range strings.Split(path, ".") {
		next := node.child(name)
		if next == nil {
			next = &PrefetchTreeNode{Name: name, Phantom: true}
			node.AddChild(next)
		}
		node = next
	}
	node.Phantom = false
	node.Semantics = semantics
	return node
}

// AddChild attaches child under n, replacing a child with the same name
func (n *PrefetchTreeNode) AddChild(child *PrefetchTreeNode) {
	for i, c := range n.children {
		if c.Name == child.Name {
			c.parent = nil
			child.parent = n
			n.children[i] = child
			return
		}
	}
	child.parent = n
	n.children = append(n.children, child)
	sort.SliceStable(n.children, func(i, j int) bool { return n.children[i].Name < n.children[j].Name })
}

/*
RemovePath removes the node at path. A node that still has children is made
phantom instead, and phantom leaves left behind are pruned.
*/
func (n *PrefetchTreeNode) RemovePath(path string) {
	node := n.Node(path)
	for node != nil && node != n {
		if !node.IsLeaf() {
			node.Phantom = true
			return
		}
		parent := node.parent
		parent.removeChild(node)
		if !parent.Phantom {
			return
		}
		node = parent
	}
}

func (n *PrefetchTreeNode) removeChild(child *PrefetchTreeNode) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Merge adds every real node of other under n
func (n *PrefetchTreeNode) Merge(other *PrefetchTreeNode) {
	if other == nil {
		return
	}
	other.Traverse(mergeProcessor{into: n, from: other})
}

// Copy returns a deep copy of the subtree rooted at n, detached from its parent
func (n *PrefetchTreeNode) Copy() *PrefetchTreeNode {
	if n == nil {
		return nil
	}
	c := &PrefetchTreeNode{Name: n.Name, Phantom: n.Phantom, Semantics: n.Semantics}
	for _, child := range n.children {
		cc := child.Copy()
		cc.parent = c
		c.children = append(c.children, cc)
	}
	return c
}

/*
AdjacentJointNodes returns the joint nodes that can be fetched in the same
query as n: joint descendants reached through joint or phantom nodes only.
*/
func (n *PrefetchTreeNode) AdjacentJointNodes() []*PrefetchTreeNode {
	var out []*PrefetchTreeNode
	var walk func(node *PrefetchTreeNode)
	walk = func(node *PrefetchTreeNode) {
		for _, c := range node.children {
			switch {
			case c.Phantom:
				walk(c)
			case c.Semantics == Joint:
				out = append(out, c)
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

// Processor receives the nodes of a prefetch tree. Start methods return false
// to skip the children of a node.
type Processor interface {
	StartPhantom(node *PrefetchTreeNode) bool
	StartDisjoint(node *PrefetchTreeNode) bool
	StartDisjointByID(node *PrefetchTreeNode) bool
	StartJoint(node *PrefetchTreeNode) bool
	StartUnknown(node *PrefetchTreeNode) bool
	Finish(node *PrefetchTreeNode)
}

/*
Traverse visits the tree depth first. Each node is started according to its
semantics and finished after its children, whether or not they were visited.
*/
func (n *PrefetchTreeNode) Traverse(p Processor) {
	var descend bool
	switch {
	case n.Phantom:
		descend = p.StartPhantom(n)
	case n.Semantics == Disjoint:
		descend = p.StartDisjoint(n)
	case n.Semantics == DisjointByID:
		descend = p.StartDisjointByID(n)
	case n.Semantics == Joint:
		descend = p.StartJoint(n)
	default:
		descend = p.StartUnknown(n)
	}

	if descend {
		for _, c := range n.children {
			c.Traverse(p)
		}
	}
	p.Finish(n)
}

type mergeProcessor struct {
	into *PrefetchTreeNode
	from *PrefetchTreeNode
}

func (m mergeProcessor) add(node *PrefetchTreeNode) bool {
	m.into.AddPath(node.PathFrom(m.from), node.Semantics)
	return true
}

func (m mergeProcessor) StartPhantom(node *PrefetchTreeNode) bool      { return true }
func (m mergeProcessor) StartDisjoint(node *PrefetchTreeNode) bool     { return m.add(node) }
func (m mergeProcessor) StartDisjointByID(node *PrefetchTreeNode) bool { return m.add(node) }
func (m mergeProcessor) StartJoint(node *PrefetchTreeNode) bool        { return m.add(node) }
func (m mergeProcessor) StartUnknown(node *PrefetchTreeNode) bool      { return m.add(node) }
func (m mergeProcessor) Finish(node *PrefetchTreeNode)                 {}
