package document

import (
	"fmt"

	"recontext/internal/domain"
)

// Merge rebuilds a full document from accepted section outputs. The base
// document supplies the top-level layout and every key outside the named
// sections; each section output must be an object that carries all of its
// configured keys. Section values are cloned into the result, so the merged
// document shares no nodes with its inputs.
func Merge(base *Document, layout domain.Layout, sections map[string]*Document) (*Document, error) {
	out := base.Clone()
	root, err := out.Get(layout.Root)
	if err != nil {
		return nil, err
	}
	if root.Kind() != KindObject {
		return nil, domain.NewEngineError(domain.ErrNotAnObject.Code, fmt.Sprintf("layout root %q is a %s node", layout.Root, root.Kind()))
	}
	for _, sec := range layout.Sections {
		doc, ok := sections[sec.Name]
		if !ok {
			return nil, domain.NewEngineError(domain.ErrSectionIncomplete.Code, fmt.Sprintf("no output for section %q", sec.Name))
		}
		if doc.Kind() != KindObject {
			return nil, domain.NewEngineError(domain.ErrSectionIncomplete.Code, fmt.Sprintf("section %q output is a %s node", sec.Name, doc.Kind()))
		}
		for _, key := range sec.Keys {
			v, ok := doc.Field(key)
			if !ok {
				return nil, domain.NewEngineError(domain.ErrSectionIncomplete.Code, fmt.Sprintf("section %q output is missing key %q", sec.Name, key))
			}
			if err := root.SetField(key, v.Clone()); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
