package combo

import (
	"fmt"
	"sort"
	"strings"
)

// ClashStrategy decides which patterns fire when several complete on the
// same tick with overlapping final presses.
type ClashStrategy uint8

const (
	// Longest fires the pattern with the most steps, then the most actions,
	// then the earliest registration.
	Longest ClashStrategy = iota
	// FirstRegistered fires the earliest registered pattern.
	FirstRegistered
	// AllowAll fires every pattern.
	AllowAll
	// ExactOnly drops patterns whose final press set is a strict subset of
	// another candidate's and fires the rest.
	ExactOnly
)

// String returns the strategy name.
func (s ClashStrategy) String() string {
	switch s {
	case Longest:
		return "longest"
	case FirstRegistered:
		return "first_registered"
	case AllowAll:
		return "allow_all"
	case ExactOnly:
		return "exact_only"
	default:
		return "unknown"
	}
}

// ParseClashStrategy parses a strategy name as produced by String.
func ParseClashStrategy(s string) (ClashStrategy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "longest":
		return Longest, nil
	case "first_registered", "first":
		return FirstRegistered, nil
	case "allow_all", "all":
		return AllowAll, nil
	case "exact_only", "exact":
		return ExactOnly, nil
	default:
		return Longest, fmt.Errorf("unknown clash strategy %q", s)
	}
}

// resolve picks the winners among the candidates that completed on one
// tick. Candidates are grouped by overlapping final steps; each group is
// resolved on its own. Winners are returned in registration order.
func resolve(strategy ClashStrategy, cands []*entry) []*entry {
	if len(cands) <= 1 || strategy == AllowAll {
		return cands
	}

	var winners []*entry
	for _, group := range groupOverlapping(cands) {
		winners = append(winners, resolveGroup(strategy, group)...)
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].order < winners[j].order })
	return winners
}

func resolveGroup(strategy ClashStrategy, group []*entry) []*entry {
	if len(group) == 1 {
		return group
	}

	switch strategy {
	case FirstRegistered:
		best := group[0]
		for _, e := range group[1:] {
			if e.order < best.order {
				best = e
			}
		}
		return []*entry{best}

	case ExactOnly:
		var out []*entry
		for _, e := range group {
			subsumed := false
			for _, o := range group {
				if o != e && strictSubset(e.p.finalStep(), o.p.finalStep()) {
					subsumed = true
					break
				}
			}
			if !subsumed {
				out = append(out, e)
			}
		}
		return out

	default:
		best := group[0]
		for _, e := range group[1:] {
			if longer(e, best) {
				best = e
			}
		}
		return []*entry{best}
	}
}

// longer reports whether a beats b under the Longest strategy.
func longer(a, b *entry) bool {
	as, bs := len(a.p.steps()), len(b.p.steps())
	if as != bs {
		return as > bs
	}
	an, bn := a.p.actionCount(), b.p.actionCount()
	if an != bn {
		return an > bn
	}
	return a.order < b.order
}

// groupOverlapping partitions candidates into groups whose final steps share
// at least one action, transitively.
func groupOverlapping(cands []*entry) [][]*entry {
	parent := make([]int, len(cands))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range cands {
		for j := i + 1; j < len(cands); j++ {
			if overlaps(cands[i].p.finalStep(), cands[j].p.finalStep()) {
				parent[find(i)] = find(j)
			}
		}
	}

	index := make(map[int]int)
	var groups [][]*entry
	for i, c := range cands {
		root := find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], c)
	}
	return groups
}

func overlaps(a, b Step) bool {
	for _, x := range a {
		if b.contains(x) {
			return true
		}
	}
	return false
}

func strictSubset(a, b Step) bool {
	if len(a) >= len(b) {
		return false
	}
	for _, x := range a {
		if !b.contains(x) {
			return false
		}
	}
	return true
}
