// Package partition splits a batch of column assignments into the
// minimal sequence of groups that can each be computed in a single
// SELECT stage. Assignments in one group may not read each other's
// targets; later groups see the targets of earlier ones.
package partition

import (
	"fmt"

	"github.com/puzuwe/rquery/expr"
)

// CycleError reports a batch whose remaining assignments all read a
// target that is still pending, so no further group can be formed.
type CycleError struct {
	Remaining []string // targets that could not be placed
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("partition: assignment cycle among targets %v", e.Remaining)
}

// Groups partitions assignments into ordered groups. available is
// the set of columns readable before any assignment runs (the input
// schema). Within a batch a later assignment may read an earlier
// one's target, which forces the reader into a later group.
//
// The scan is greedy: each pass walks the remaining assignments left
// to right and places every assignment whose reads are all satisfied
// by the input or by completed groups, whose reads do not touch a
// target already placed in the current group, and whose own target is
// not already a target of the current group. A pass that places
// nothing means the remaining assignments form a cycle.
func Groups(available []string, assignments []expr.Assignment) ([][]expr.Assignment, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	ready := make(map[string]bool, len(available))
	for _, c := range available {
		ready[c] = true
	}

	remaining := append([]expr.Assignment(nil), assignments...)
	var groups [][]expr.Assignment

	for len(remaining) > 0 {
		var group []expr.Assignment
		groupTargets := map[string]bool{}
		var deferred []expr.Assignment

		for _, a := range remaining {
			if placeable(a, ready, groupTargets) {
				group = append(group, a)
				groupTargets[a.Target] = true
			} else {
				deferred = append(deferred, a)
			}
		}

		if len(group) == 0 {
			targets := make([]string, 0, len(remaining))
			for _, a := range remaining {
				targets = append(targets, a.Target)
			}
			return nil, &CycleError{Remaining: targets}
		}

		groups = append(groups, group)
		for t := range groupTargets {
			ready[t] = true
		}
		remaining = deferred
	}

	return groups, nil
}

func placeable(a expr.Assignment, ready, groupTargets map[string]bool) bool {
	if groupTargets[a.Target] {
		return false
	}
	for _, v := range expr.Vars(a.Expr) {
		if !ready[v] || groupTargets[v] {
			return false
		}
	}
	return true
}
