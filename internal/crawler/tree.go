package crawler

import (
	"sync"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

type nodeState int

const (
	nodePending nodeState = iota
	nodeFetched
	nodeDropped
)

type node struct {
	url      string
	path     string
	parent   int
	children []int
	state    nodeState
	code     int
	content  string
}

// tree is the discovery arena. Nodes are addressed by index; the root is 0.
type tree struct {
	mu    sync.Mutex
	nodes []node
	paths map[string]int
}

func newTree(rootURL, rootPath string) *tree {
	return &tree{
		nodes: []node{{url: rootURL, path: rootPath, parent: -1}},
		paths: map[string]int{rootPath: 0},
	}
}

// addChild inserts a node under parent unless its path is already anywhere
// in the tree.
func (t *tree) addChild(parent int, l link) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.paths[l.path]; exists {
		return 0, false
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{url: l.url, path: l.path, parent: parent})
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	t.paths[l.path] = idx
	return idx, true
}

func (t *tree) url(idx int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodes[idx].url
}

func (t *tree) record(idx int, code int, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[idx].state = nodeFetched
	t.nodes[idx].code = code
	t.nodes[idx].content = content
}

func (t *tree) drop(idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[idx].state = nodeDropped
}

func (t *tree) fetched(idx int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodes[idx].state == nodeFetched
}

// pages flattens the fetched nodes into pages without tree structure.
func (t *tree) pages(siteID int64) []engine.Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]engine.Page, 0, len(t.nodes))
	for _, n := range t.nodes {
		if n.state != nodeFetched {
			continue
		}
		out = append(out, engine.Page{SiteID: siteID, Path: n.path, Code: n.code, Content: n.content})
	}
	return out
}

func (t *tree) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}
