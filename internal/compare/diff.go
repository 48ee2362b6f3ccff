package compare

import (
	"encoding/json"

	"recontext/internal/document"
	"recontext/internal/domain"
)

// Changed lists every value difference between reference and candidate,
// skipping the given paths and everything below them. Scalar differences are
// reported at the scalar's path; a structural divergence (key set, array
// length, or type) is reported once at the node where it appears, with the
// full subtrees as old and new values. Entries follow pre-order traversal of
// the reference, so the list is deterministic.
func Changed(reference, candidate *document.Document, skipPaths []string) []domain.ChangedFieldEntry {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	var out []domain.ChangedFieldEntry
	changedNode("", reference, candidate, skip, &out)
	return out
}

func changedNode(path string, ref, cand *document.Document, skip map[string]bool, out *[]domain.ChangedFieldEntry) {
	if skip[path] {
		return
	}
	if ref.Kind() != cand.Kind() {
		*out = append(*out, entry(path, ref, cand))
		return
	}
	switch ref.Kind() {
	case document.KindObject:
		if !sameKeySet(ref, cand) {
			*out = append(*out, entry(path, ref, cand))
			return
		}
		for _, k := range ref.Keys() {
			rv, _ := ref.Field(k)
			cv, _ := cand.Field(k)
			changedNode(document.ChildPath(path, k), rv, cv, skip, out)
		}
	case document.KindArray:
		if ref.Len() != cand.Len() {
			*out = append(*out, entry(path, ref, cand))
			return
		}
		for i := 0; i < ref.Len(); i++ {
			changedNode(document.IndexPath(path, i), ref.Item(i), cand.Item(i), skip, out)
		}
	default:
		if !ref.EqualsDeep(cand) {
			*out = append(*out, entry(path, ref, cand))
		}
	}
}

func sameKeySet(a, b *document.Document) bool {
	if len(a.Keys()) != len(b.Keys()) {
		return false
	}
	for _, k := range a.Keys() {
		if _, ok := b.Field(k); !ok {
			return false
		}
	}
	return true
}

func entry(path string, oldDoc, newDoc *document.Document) domain.ChangedFieldEntry {
	return domain.ChangedFieldEntry{
		Path:     path,
		OldValue: json.RawMessage(oldDoc.JSON()),
		NewValue: json.RawMessage(newDoc.JSON()),
	}
}
