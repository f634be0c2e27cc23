package catalog

import (
	"fmt"
	"slices"
)

// IssueKind classifies a data-consistency problem between the catalog and
// the boundary table.
type IssueKind string

const (
	IssueMainBoundaryMissing IssueKind = "main_boundary_missing"
	IssueBoundaryMissing     IssueKind = "boundary_missing"
	IssueBoundarySelectable  IssueKind = "boundary_selectable"
	IssueExcludedUnknown     IssueKind = "excluded_unknown"
	IssueMappedNameExcluded  IssueKind = "mapped_name_excluded"
	IssueMappedNameUnknown   IssueKind = "mapped_name_unknown"
	IssueDuplicateName       IssueKind = "duplicate_name"
)

// Issue is one finding of Validate.
type Issue struct {
	Kind   IssueKind `json:"kind" doc:"Issue classification"`
	Name   string    `json:"name" doc:"Feature or boundary name involved"`
	Detail string    `json:"detail" doc:"Human-readable description"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
}

// Validate cross-checks the boundary table against the catalog. The
// exclusion list and the mapping are maintained separately, so they can
// drift; every divergence is reported rather than reconciled.
func Validate(c *Catalog, b Boundaries) []Issue {
	var issues []Issue
	add := func(kind IssueKind, name, format string, args ...any) {
		issues = append(issues, Issue{Kind: kind, Name: name, Detail: fmt.Sprintf(format, args...)})
	}

	if _, ok := c.FindByName(b.Main); !ok {
		add(IssueMainBoundaryMissing, b.Main, "main boundary %q is not in the catalog", b.Main)
	}
	if !b.IsExcluded(b.Main) {
		add(IssueBoundarySelectable, b.Main, "main boundary %q is not excluded from the location list", b.Main)
	}

	keys := make([]string, 0, len(b.Mapping))
	for k := range b.Mapping {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	reported := map[string]bool{}
	for _, name := range keys {
		boundary := b.Mapping[name]
		if _, ok := c.FindByName(name); !ok {
			add(IssueMappedNameUnknown, name, "mapped location %q is not in the catalog", name)
		}
		if b.IsExcluded(name) {
			add(IssueMappedNameExcluded, name, "mapped location %q is excluded and can never be selected", name)
		}
		if reported[boundary] {
			continue
		}
		reported[boundary] = true
		if _, ok := c.FindByName(boundary); !ok {
			add(IssueBoundaryMissing, boundary, "boundary %q (for %q) is not in the catalog", boundary, name)
		}
		if !b.IsExcluded(boundary) {
			add(IssueBoundarySelectable, boundary, "boundary %q is not excluded from the location list", boundary)
		}
	}

	for _, name := range b.Excluded {
		if _, ok := c.FindByName(name); !ok && name != b.Main {
			add(IssueExcludedUnknown, name, "excluded name %q is not in the catalog", name)
		}
	}

	seen := map[string]bool{}
	for _, name := range c.Duplicates() {
		if seen[name] {
			continue
		}
		seen[name] = true
		add(IssueDuplicateName, name, "name %q appears more than once; the last feature wins", name)
	}
	return issues
}
