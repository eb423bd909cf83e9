package tree

// Shape is the chart symbol used to draw a node.
type Shape string

const (
	ShapeDiamond Shape = "diamond"
	ShapeRect    Shape = "rect"
	ShapeCircle  Shape = "circle"
)

// Palette holds one accent colour per tree tier.
type Palette struct {
	Root  string `json:"root" yaml:"root"`
	Tier1 string `json:"tier1" yaml:"tier1"`
	Tier2 string `json:"tier2" yaml:"tier2"`
	Tier3 string `json:"tier3" yaml:"tier3"`
}

var (
	LightPalette = Palette{Root: "#5470c6", Tier1: "#91cc75", Tier2: "#fac858", Tier3: "#ee6666"}
	DarkPalette  = Palette{Root: "#4992ff", Tier1: "#7cffb2", Tier2: "#fddd60", Tier3: "#ff6e76"}
)

// PaletteFor returns the built-in palette for the given theme.
func PaletteFor(dark bool) Palette {
	if dark {
		return DarkPalette
	}
	return LightPalette
}

// classify picks the symbol for n. It only reads the structure; placement is
// decided separately in Build.
func classify(n *TreeNode, byID map[string]*TreeNode, pal Palette) (Shape, string) {
	switch {
	case n.ID == RootID:
		return ShapeDiamond, pal.Root
	case n.Parent == RootID:
		return ShapeRect, pal.Tier1
	case relativeDepth(n, byID) == 1:
		return ShapeCircle, pal.Tier2
	default:
		return ShapeDiamond, pal.Tier3
	}
}

// relativeDepth counts the steps from n up to its subtree root: the nearest
// ancestor that has no resolvable parent or hangs directly off the sentinel.
// Callers must have rejected cycles first.
func relativeDepth(n *TreeNode, byID map[string]*TreeNode) int {
	depth := 0
	cur := n
	for cur.Parent != RootID {
		p, ok := resolveParent(cur, byID)
		if !ok {
			break
		}
		cur = p
		depth++
	}
	return depth
}
