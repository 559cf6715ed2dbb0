package controller

// Target is the sum type every orchestration selector resolves through:
// a concrete handle, a numeric id, an alias, a group name, or a list of any
// of these. It replaces the duck-typed selector argument the broadcast/
// workpool/parallel/pipeline call sites would otherwise accept.
type Target struct {
	handle Handle
	id     uint64
	alias  string
	group  string
	list   []Target

	kind targetKind
}

type targetKind int

const (
	targetNone targetKind = iota
	targetHandle
	targetID
	targetAlias
	targetGroup
	targetList
)

// ByHandle selects a single already-resolved handle.
func ByHandle(h Handle) Target { return Target{kind: targetHandle, handle: h} }

// ByID selects the live handle with the given numeric worker id.
func ByID(id uint64) Target { return Target{kind: targetID, id: id} }

// ByAlias selects the live handle with the given alias.
func ByAlias(alias string) Target { return Target{kind: targetAlias, alias: alias} }

// ByGroup selects every live handle in the named group.
func ByGroup(group string) Target { return Target{kind: targetGroup, group: group} }

// List combines multiple selectors into one; the resolver flattens and
// deduplicates the underlying handle set.
func List(targets ...Target) Target { return Target{kind: targetList, list: targets} }

// Resolve flattens t against reg into a deduplicated handle set, in first-
// seen order. An unresolvable id/alias/group contributes no handles (it is
// not an error at this layer — callers decide whether an empty result is
// acceptable).
func (t Target) Resolve(reg *Registry) []Handle {
	seen := make(map[uint64]struct{})
	var out []Handle
	t.collect(reg, seen, &out)
	return out
}

func (t Target) collect(reg *Registry, seen map[uint64]struct{}, out *[]Handle) {
	add := func(h Handle) {
		if h == nil {
			return
		}
		if _, ok := seen[h.ID()]; ok {
			return
		}
		seen[h.ID()] = struct{}{}
		*out = append(*out, h)
	}

	switch t.kind {
	case targetHandle:
		add(t.handle)
	case targetID:
		if h, ok := reg.ByID(t.id); ok {
			add(h)
		}
	case targetAlias:
		if h, ok := reg.ByAlias(t.alias); ok {
			add(h)
		}
	case targetGroup:
		for _, h := range reg.InGroup(t.group) {
			add(h)
		}
	case targetList:
		for _, sub := range t.list {
			sub.collect(reg, seen, out)
		}
	}
}
