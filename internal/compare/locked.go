package compare

import (
	"fmt"

	"recontext/internal/document"
	"recontext/internal/domain"
)

// Locked verifies that every locked path holds an identical value in
// reference and candidate. Equality is exact: array order matters and
// numeric literals must match, so 1 and 1.0 count as a violation. A path
// absent from both sides is skipped, which lets section machines share the
// full locked set even when a path lives in another section's subtree.
func Locked(reference, candidate *document.Document, lockedPaths []string) []domain.ValidationError {
	var errs []domain.ValidationError
	for _, p := range lockedPaths {
		ref, refErr := reference.Get(p)
		cand, candErr := candidate.Get(p)
		switch {
		case refErr != nil && candErr != nil:
			continue
		case candErr != nil:
			errs = append(errs, domain.ValidationError{
				Path:    p,
				Kind:    domain.KindLockedFieldViolation,
				Message: "locked path missing from output",
			})
		case refErr != nil:
			errs = append(errs, domain.ValidationError{
				Path:    p,
				Kind:    domain.KindLockedFieldViolation,
				Message: "locked path not present in source",
			})
		default:
			if ref.EqualsDeep(cand) {
				continue
			}
			msg := "locked value differs from source"
			if at := firstDifference(p, ref, cand); at != "" && at != p {
				msg = fmt.Sprintf("locked value differs from source at %s", at)
			}
			errs = append(errs, domain.ValidationError{
				Path:    p,
				Kind:    domain.KindLockedFieldViolation,
				Message: msg,
			})
		}
	}
	return errs
}

// firstDifference returns the path of the first divergent node in pre-order,
// or "" when the trees are equal.
func firstDifference(path string, ref, cand *document.Document) string {
	if ref.Kind() != cand.Kind() {
		return path
	}
	switch ref.Kind() {
	case document.KindObject:
		for _, k := range ref.Keys() {
			if _, ok := cand.Field(k); !ok {
				return document.ChildPath(path, k)
			}
		}
		for _, k := range cand.Keys() {
			if _, ok := ref.Field(k); !ok {
				return document.ChildPath(path, k)
			}
		}
		for _, k := range ref.Keys() {
			rv, _ := ref.Field(k)
			cv, _ := cand.Field(k)
			if at := firstDifference(document.ChildPath(path, k), rv, cv); at != "" {
				return at
			}
		}
		return ""
	case document.KindArray:
		if ref.Len() != cand.Len() {
			return path
		}
		for i := 0; i < ref.Len(); i++ {
			if at := firstDifference(document.IndexPath(path, i), ref.Item(i), cand.Item(i)); at != "" {
				return at
			}
		}
		return ""
	default:
		if ref.EqualsDeep(cand) {
			return ""
		}
		return path
	}
}
