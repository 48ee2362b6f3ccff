package document

import (
	"fmt"
	"strconv"
	"strings"

	"recontext/internal/domain"
)

// Paths address nodes with dot-separated object keys and [n] array indices,
// e.g. "topicWizardData.scenarioOptions[2].title". Keys containing '.' or
// '[' are not addressable.

type pathSeg struct {
	key   string
	index int
	isKey bool
}

func splitPath(path string) ([]pathSeg, error) {
	if path == "" {
		return nil, domain.NewEngineError(domain.ErrPathInvalid.Code, "empty path")
	}
	var segs []pathSeg
	for _, part := range strings.Split(path, ".") {
		rest := part
		key := rest
		if i := strings.IndexByte(rest, '['); i >= 0 {
			key = rest[:i]
			rest = rest[i:]
		} else {
			rest = ""
		}
		if key != "" {
			segs = append(segs, pathSeg{key: key, isKey: true})
		} else if rest == "" {
			return nil, domain.NewEngineError(domain.ErrPathInvalid.Code, fmt.Sprintf("empty segment in path %q", path))
		}
		for rest != "" {
			if rest[0] != '[' {
				return nil, domain.NewEngineError(domain.ErrPathInvalid.Code, fmt.Sprintf("malformed index in path %q", path))
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, domain.NewEngineError(domain.ErrPathInvalid.Code, fmt.Sprintf("unterminated index in path %q", path))
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return nil, domain.NewEngineError(domain.ErrPathInvalid.Code, fmt.Sprintf("bad array index in path %q", path))
			}
			segs = append(segs, pathSeg{index: n})
			rest = rest[end+1:]
		}
	}
	return segs, nil
}

// Get resolves a path from the receiver and returns the node it names.
func (d *Document) Get(path string) (*Document, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	cur := d
	for _, seg := range segs {
		if seg.isKey {
			if cur.kind != KindObject {
				return nil, domain.NewEngineError(domain.ErrPathNotFound.Code, fmt.Sprintf("path %q traverses a %s node", path, cur.kind))
			}
			next, ok := cur.fields[seg.key]
			if !ok {
				return nil, domain.NewEngineError(domain.ErrPathNotFound.Code, fmt.Sprintf("path %q not found", path))
			}
			cur = next
		} else {
			if cur.kind != KindArray || seg.index >= len(cur.items) {
				return nil, domain.NewEngineError(domain.ErrPathNotFound.Code, fmt.Sprintf("path %q not found", path))
			}
			cur = cur.items[seg.index]
		}
	}
	return cur, nil
}

// ChildPath extends a path with an object key.
func ChildPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// IndexPath extends a path with an array index.
func IndexPath(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}
