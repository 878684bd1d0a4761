package plays

import (
	"fmt"
	"io"
	"sort"

	"github.com/signalfuse/maestro-ng/pkg/types"
)

// DepTree writes an ASCII dependency tree of services to w, one root per
// entry in roots, per spec.md §4.F DepTree. When recursive is false, a
// service already printed elsewhere in the tree is shown once with its
// subtree elided (marked "(...)") instead of expanded again, matching
// the original's duplicate-pruning behavior.
func DepTree(w io.Writer, roots []*types.Service, recursive bool) {
	printed := map[string]bool{}
	for i, r := range roots {
		depTreeNode(w, r, "", i == len(roots)-1, printed, recursive, true)
	}
}

func depTreeNode(w io.Writer, s *types.Service, prefix string, last bool, printed map[string]bool, recursive, isRoot bool) {
	connector := "├── "
	if last {
		connector = "└── "
	}
	if isRoot {
		connector = ""
	}

	already := printed[s.Name]
	suffix := ""
	if already && !recursive {
		suffix = " (...)"
	}
	fmt.Fprintf(w, "%s%s%s%s\n", prefix, connector, s.Name, suffix)

	if already && !recursive {
		return
	}
	printed[s.Name] = true

	deps := make([]*types.Service, 0, len(s.Requires))
	for _, d := range s.Requires {
		deps = append(deps, d)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	childPrefix := prefix
	if !isRoot {
		if last {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}
	for i, d := range deps {
		depTreeNode(w, d, childPrefix, i == len(deps)-1, printed, recursive, false)
	}
}
