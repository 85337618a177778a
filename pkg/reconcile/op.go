package reconcile

// OpKind is the type of change applied to the live tree.
type OpKind uint8

const (
	OpSetText  OpKind = iota + 1 // Text or comment data changed
	OpSetAttrs                   // Attribute list replaced
	OpInsert                     // New node inserted
	OpRemove                     // Node discarded
	OpMove                       // Keyed node moved
	OpReplace                    // Patch root replaced
	OpSetValue                   // Live form value carried onto the replacement
)

// String returns the string representation of the OpKind.
func (k OpKind) String() string {
	switch k {
	case OpSetText:
		return "SetText"
	case OpSetAttrs:
		return "SetAttrs"
	case OpInsert:
		return "Insert"
	case OpRemove:
		return "Remove"
	case OpMove:
		return "Move"
	case OpReplace:
		return "Replace"
	case OpSetValue:
		return "SetValue"
	default:
		return "Unknown"
	}
}

// Op records a single change applied during a patch.
type Op struct {
	Kind OpKind
	Tag  string // Element tag, "#text" or "#comment"
	Key  string // Identity key of the node, if any
}
