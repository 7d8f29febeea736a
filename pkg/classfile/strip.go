package classfile

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/bytecut/bytecut/pkg/model"
)

// Strip serializes a parsed class back to bytes, reflecting any method
// deletions made on the entry since parsing. The surviving method_info
// ranges are spliced from the original bytes and methods_count is
// patched; the constant pool is left untouched (orphaned entries are
// legal per the JVMS). A class with no deletions round-trips
// byte-identical.
func Strip(entry *model.ClassEntry) ([]byte, error) {
	if entry.Raw == nil {
		return nil, fmt.Errorf("classfile: class %s was not produced by the parser", entry.Name)
	}
	if entry.MethodsEndOffset == 0 {
		return nil, fmt.Errorf("classfile: class %s has no recorded method layout", entry.Name)
	}

	survivors := make([]*model.MethodEntry, len(entry.Methods))
	copy(survivors, entry.Methods)
	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].Span.Start < survivors[j].Span.Start
	})

	raw := entry.Raw
	out := make([]byte, 0, len(raw))
	out = append(out, raw[:entry.MethodsCountOffset]...)

	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(survivors)))
	out = append(out, count[:]...)

	for _, m := range survivors {
		if m.Span.Start < entry.MethodsCountOffset+2 || m.Span.End > entry.MethodsEndOffset {
			return nil, fmt.Errorf("classfile: method %s span outside method section", m.Ref())
		}
		out = append(out, raw[m.Span.Start:m.Span.End]...)
	}

	out = append(out, raw[entry.MethodsEndOffset:]...)
	return out, nil
}
