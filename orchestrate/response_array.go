package orchestrate

import (
	"sort"

	"github.com/dmitrymomot/distio/wire"
)

// ResponseArray is a plain ordered sequence of responses with the helpers
// orchestration patterns need: the methods Values and SortByFromAscending,
// and the free function Unshift, a true prepend.
type ResponseArray []wire.Response

// Values projects the array onto its response values, in the same order.
func (a ResponseArray) Values() []any {
	out := make([]any, len(a))
	for i, r := range a {
		out[i] = r.Value
	}
	return out
}

// SortByFromAscending returns a copy of a sorted by FromWorkerID ascending,
// the deterministic order broadcast results are returned in. Scatter results
// keep item order and are not sorted.
func (a ResponseArray) SortByFromAscending() ResponseArray {
	out := make(ResponseArray, len(a))
	copy(out, a)
	sort.Slice(out, func(i, j int) bool { return out[i].FromWorkerID < out[j].FromWorkerID })
	return out
}

// Unshift prepends r to a, returning the new array. Implemented as a true
// prepend, not an append-in-disguise.
func Unshift(a ResponseArray, r wire.Response) ResponseArray {
	out := make(ResponseArray, 0, len(a)+1)
	out = append(out, r)
	out = append(out, a...)
	return out
}
