package tree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructure matches every *StructureError via errors.Is.
var ErrStructure = errors.New("tree: invalid structure")

// Kind identifies the structural defect found in the input.
type Kind string

const (
	KindMissingID   Kind = "missing_id"
	KindDuplicateID Kind = "duplicate_id"
	KindCycle       Kind = "cycle"
)

// StructureError reports input that cannot be turned into a forest.
type StructureError struct {
	Kind  Kind
	ID    string
	Index int      // input position, for missing and duplicate ids
	Path  []string // the offending parent chain, for cycles
}

func (e *StructureError) Error() string {
	switch e.Kind {
	case KindMissingID:
		return fmt.Sprintf("tree: node at index %d has no id", e.Index)
	case KindDuplicateID:
		return fmt.Sprintf("tree: duplicate id %q at index %d", e.ID, e.Index)
	case KindCycle:
		return fmt.Sprintf("tree: parent cycle %s", strings.Join(e.Path, " -> "))
	default:
		return fmt.Sprintf("tree: %s", e.Kind)
	}
}

// Is reports whether target is ErrStructure.
func (e *StructureError) Is(target error) bool {
	return target == ErrStructure
}
