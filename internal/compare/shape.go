// Package compare checks candidate documents against a reference: structural
// shape, locked-field equality, and value-level diffs.
package compare

import (
	"fmt"

	"recontext/internal/document"
	"recontext/internal/domain"
)

// Shape verifies that candidate mirrors reference's structure: same key sets
// on objects, same lengths on arrays, same JSON type at every node. Scalar
// values are free to differ. Findings are reported in pre-order traversal of
// the reference, so identical inputs always yield identical sequences.
func Shape(reference, candidate *document.Document) []domain.ValidationError {
	var errs []domain.ValidationError
	shapeNode("", reference, candidate, &errs)
	return errs
}

func shapeNode(path string, ref, cand *document.Document, errs *[]domain.ValidationError) {
	if ref.Kind() != cand.Kind() {
		*errs = append(*errs, domain.ValidationError{
			Path:    path,
			Kind:    domain.KindTypeMismatch,
			Message: fmt.Sprintf("expected %s, got %s", ref.Kind(), cand.Kind()),
		})
		return
	}
	switch ref.Kind() {
	case document.KindObject:
		for _, k := range ref.Keys() {
			if _, ok := cand.Field(k); !ok {
				*errs = append(*errs, domain.ValidationError{
					Path:    document.ChildPath(path, k),
					Kind:    domain.KindMissingKey,
					Message: "key missing from output",
				})
			}
		}
		for _, k := range cand.Keys() {
			if _, ok := ref.Field(k); !ok {
				*errs = append(*errs, domain.ValidationError{
					Path:    document.ChildPath(path, k),
					Kind:    domain.KindExtraKey,
					Message: "key not present in source",
				})
			}
		}
		for _, k := range ref.Keys() {
			cv, ok := cand.Field(k)
			if !ok {
				continue
			}
			rv, _ := ref.Field(k)
			shapeNode(document.ChildPath(path, k), rv, cv, errs)
		}
	case document.KindArray:
		if ref.Len() != cand.Len() {
			*errs = append(*errs, domain.ValidationError{
				Path:    path,
				Kind:    domain.KindSchemaMismatch,
				Message: fmt.Sprintf("array length %d, want %d", cand.Len(), ref.Len()),
			})
		}
		n := min(ref.Len(), cand.Len())
		for i := 0; i < n; i++ {
			shapeNode(document.IndexPath(path, i), ref.Item(i), cand.Item(i), errs)
		}
	}
}
