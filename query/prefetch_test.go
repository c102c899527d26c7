package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	visits []string
	skip   string
}

func (r *recorder) start(tag string, node *PrefetchTreeNode) bool {
	r.visits = append(r.visits, tag+":"+node.Path())
	return node.Path() != r.skip
}

func (r *recorder) StartPhantom(node *PrefetchTreeNode) bool      { return r.start("phantom", node) }
func (r *recorder) StartDisjoint(node *PrefetchTreeNode) bool     { return r.start("disjoint", node) }
func (r *recorder) StartDisjointByID(node *PrefetchTreeNode) bool { return r.start("byId", node) }
func (r *recorder) StartJoint(node *PrefetchTreeNode) bool        { return r.start("joint", node) }
func (r *recorder) StartUnknown(node *PrefetchTreeNode) bool      { return r.start("unknown", node) }
func (r *recorder) Finish(node *PrefetchTreeNode) {
	r.visits = append(r.visits, "finish:"+node.Path())
}

func TestPrefetchTree(t *testing.T) {
	testCases := []struct {
		desc     string
		build    func() *PrefetchTreeNode
		skip     string
		expected []string
	}{
		{
			desc: "intermediate nodes are phantom",
			build: func() *PrefetchTreeNode {
				tree := NewPrefetchTree()
				tree.AddPath("paintings.gallery", Joint)
				return tree
			},
			expected: []string{
				"phantom:", "phantom:paintings", "joint:paintings.gallery",
				"finish:paintings.gallery", "finish:paintings", "finish:",
			},
		},
		{
			desc: "adding a phantom node's path makes it real",
			build: func() *PrefetchTreeNode {
				tree := NewPrefetchTree()
				tree.AddPath("paintings.gallery", Joint)
				tree.AddPath("paintings", Disjoint)
				return tree
			},
			expected: []string{
				"phantom:", "disjoint:paintings", "joint:paintings.gallery",
				"finish:paintings.gallery", "finish:paintings", "finish:",
			},
		},
		{
			desc: "children are visited in name order",
			build: func() *PrefetchTreeNode {
				tree := NewPrefetchTree()
				tree.AddPath("paintings", DisjointByID)
				tree.AddPath("artistExhibits", Undefined)
				return tree
			},
			expected: []string{
				"phantom:", "unknown:artistExhibits", "finish:artistExhibits",
				"byId:paintings", "finish:paintings", "finish:",
			},
		},
		{
			desc: "children are skipped but the node is still finished",
			build: func() *PrefetchTreeNode {
				tree := NewPrefetchTree()
				tree.AddPath("paintings.gallery", Joint)
				tree.AddPath("paintings", Disjoint)
				return tree
			},
			skip: "paintings",
			expected: []string{
				"phantom:", "disjoint:paintings", "finish:paintings", "finish:",
			},
		},
		{
			desc: "removing a node with children makes it phantom",
			build: func() *PrefetchTreeNode {
				tree := NewPrefetchTree()
				tree.AddPath("paintings", Disjoint)
				tree.AddPath("paintings.gallery", Joint)
				tree.RemovePath("paintings")
				return tree
			},
			expected: []string{
				"phantom:", "phantom:paintings", "joint:paintings.gallery",
				"finish:paintings.gallery", "finish:paintings", "finish:",
			},
		},
		{
			desc: "removing the last real node prunes phantom parents",
			build: func() *PrefetchTreeNode {
				tree := NewPrefetchTree()
				tree.AddPath("paintings.gallery", Joint)
				tree.RemovePath("paintings.gallery")
				return tree
			},
			expected: []string{"phantom:", "finish:"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			r := &recorder{skip: tc.skip}
			tc.build().Traverse(r)
			assert.Equal(t, tc.expected, r.visits)
		})
	}
}

func TestAdjacentJointNodes(t *testing.T) {
	tree := NewPrefetchTree()
	tree.AddPath("paintings", Joint)
	tree.AddPath("paintings.gallery", Joint)
	tree.AddPath("paintings.paintingInfo", Disjoint)
	tree.AddPath("paintings.paintingInfo.painting", Joint)
	tree.AddPath("artistExhibits.exhibit", Joint)

	var paths []string
	for _, n := range tree.AdjacentJointNodes() {
		paths = append(paths, n.Path())
	}
	assert.Equal(t, []string{"artistExhibits.exhibit", "paintings", "paintings.gallery"}, paths)

	info := tree.Node("paintings.paintingInfo")
	assert.Equal(t, "painting", info.AdjacentJointNodes()[0].PathFrom(info))
}

func TestPrefetchTreeMerge(t *testing.T) {
	other := NewPrefetchTree()
	other.AddPath("paintings.gallery", Disjoint)

	tree := NewPrefetchTree()
	tree.AddPath("paintings", Joint)
	tree.Merge(other)

	r := &recorder{}
	tree.Traverse(r)
	assert.Equal(t, "phantom:,joint:paintings,disjoint:paintings.gallery", strings.Join(starts(r.visits), ","))
}

func starts(visits []string) []string {
	var out []string
	for _, v := range visits {
		if !strings.HasPrefix(v, "finish:") {
			out = append(out, v)
		}
	}
	return out
}
