// SPDX-License-Identifier: MPL-2.0

package watch

// Kind classifies a raw native event.
type Kind int

const (
	// KindCreated means an entry appeared in the directory.
	KindCreated Kind = iota + 1
	// KindModified means an entry's content changed.
	KindModified
	// KindDeleted means an entry was removed or moved away.
	KindDeleted
	// KindOverflow means the native queue saturated and events were lost.
	KindOverflow
	// KindOther covers anything the backend could not classify.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModified:
		return "modified"
	case KindDeleted:
		return "deleted"
	case KindOverflow:
		return "overflow"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// RawEvent is one event drained from a directory registration. Name is
// relative to Dir and empty for KindOverflow.
type RawEvent struct {
	Dir  string
	Kind Kind
	Name string
}
