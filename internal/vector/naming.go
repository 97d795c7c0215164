package vector

import "strings"

// Scope selects how chunks are grouped into collections.
type Scope int

const (
	// ScopeShared puts every owner's chunks in one shared collection
	// (the bulk rebuild path).
	ScopeShared Scope = iota
	// ScopePerOwner isolates each owner in their own collection.
	ScopePerOwner
)

const sharedCollection = "documents_shared"

// CollectionName is a pure function of scope and owner identity, which
// is what guarantees cross-owner isolation on the per-owner path.
func CollectionName(scope Scope, ownerID string) string {
	if scope == ScopePerOwner {
		return "user_" + ownerID
	}
	return sharedCollection
}

// ClassName maps a collection id onto a valid Weaviate class name:
// leading uppercase letter, then letters, digits and underscores.
func ClassName(collection string) string {
	var sb strings.Builder
	sb.WriteString("Chunks_")
	for _, r := range collection {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
