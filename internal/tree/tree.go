// Package tree turns flat parent-referencing records into nested forests
// suitable for hierarchical charts.
package tree

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RootID is the sentinel id of the top node of a dashboard tree.
const RootID = "root"

// FlatNode is an unordered, parent-referencing input record.
// An empty Parent marks a root; Color is advisory only. Value is an optional
// amount carried through to the built node untouched.
type FlatNode struct {
	ID     string              `json:"id"`
	Parent string              `json:"parent,omitempty"`
	Name   string              `json:"name"`
	Color  string              `json:"color,omitempty"`
	Value  decimal.NullDecimal `json:"value,omitzero"`
}

// TreeNode is a FlatNode with its ordered children and presentation metadata.
type TreeNode struct {
	ID          string              `json:"id"`
	Parent      string              `json:"parent,omitempty"`
	Name        string              `json:"name"`
	Color       string              `json:"color,omitempty"`
	Value       decimal.NullDecimal `json:"value,omitzero"`
	SymbolShape Shape               `json:"symbol_shape"`
	SymbolColor string              `json:"symbol_color"`
	Children    []*TreeNode         `json:"children"`
}

// Options controls presentation metadata. Palette overrides the theme palette
// selected by Dark when non-nil.
type Options struct {
	Dark    bool
	Palette *Palette
}

func (o Options) palette() Palette {
	if o.Palette != nil {
		return *o.Palette
	}
	return PaletteFor(o.Dark)
}

// Build converts nodes into a forest. Roots are returned in input order and
// children are attached in input order. A node whose parent id is not present
// becomes a root. Missing ids, duplicate ids and parent cycles fail the whole
// build with a *StructureError.
func Build(nodes []FlatNode, opts Options) ([]*TreeNode, error) {
	forest := []*TreeNode{}
	if len(nodes) == 0 {
		return forest, nil
	}

	byID := make(map[string]*TreeNode, len(nodes))
	wrappers := make([]*TreeNode, len(nodes))
	for i, n := range nodes {
		if strings.TrimSpace(n.ID) == "" {
			return nil, &StructureError{Kind: KindMissingID, Index: i}
		}
		if _, dup := byID[n.ID]; dup {
			return nil, &StructureError{Kind: KindDuplicateID, ID: n.ID, Index: i}
		}
		w := &TreeNode{
			ID:       n.ID,
			Parent:   n.Parent,
			Name:     n.Name,
			Color:    n.Color,
			Value:    n.Value,
			Children: []*TreeNode{},
		}
		byID[n.ID] = w
		wrappers[i] = w
	}

	if err := detectCycles(wrappers, byID); err != nil {
		return nil, err
	}

	pal := opts.palette()
	for _, w := range wrappers {
		w.SymbolShape, w.SymbolColor = classify(w, byID, pal)
	}

	for _, w := range wrappers {
		if p, ok := resolveParent(w, byID); ok {
			p.Children = append(p.Children, w)
			continue
		}
		forest = append(forest, w)
	}
	return forest, nil
}

// Count returns the total number of nodes in the forest.
func Count(forest []*TreeNode) int {
	n := 0
	Walk(forest, func(*TreeNode, int) { n++ })
	return n
}

// Walk visits every node depth-first in pre-order. depth is 0 for roots.
func Walk(forest []*TreeNode, fn func(node *TreeNode, depth int)) {
	var visit func(nodes []*TreeNode, depth int)
	visit = func(nodes []*TreeNode, depth int) {
		for _, n := range nodes {
			fn(n, depth)
			visit(n.Children, depth+1)
		}
	}
	visit(forest, 0)
}

func resolveParent(n *TreeNode, byID map[string]*TreeNode) (*TreeNode, bool) {
	if n.Parent == "" {
		return nil, false
	}
	p, ok := byID[n.Parent]
	return p, ok
}

// detectCycles walks every parent chain once. Chains that reach a root or an
// unresolvable parent are marked done so later walks stop early.
func detectCycles(wrappers []*TreeNode, byID map[string]*TreeNode) error {
	const (
		unseen = iota
		visiting
		done
	)
	state := make(map[string]int, len(wrappers))

	for _, w := range wrappers {
		var chain []string
		cur := w
		for cur != nil {
			switch state[cur.ID] {
			case done:
				cur = nil
				continue
			case visiting:
				start := 0
				for i, id := range chain {
					if id == cur.ID {
						start = i
						break
					}
				}
				path := append(append([]string{}, chain[start:]...), cur.ID)
				return &StructureError{Kind: KindCycle, ID: cur.ID, Path: path}
			}
			state[cur.ID] = visiting
			chain = append(chain, cur.ID)
			p, ok := resolveParent(cur, byID)
			if !ok {
				break
			}
			cur = p
		}
		for _, id := range chain {
			state[id] = done
		}
	}
	return nil
}
