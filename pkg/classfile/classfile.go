// Package classfile parses JVM class files into the program model and
// serializes method deletions back into valid class file bytes.
//
// Parsing covers exactly what the analysis needs: the constant pool,
// class identity and hierarchy references, fields, and method bodies
// decoded into the instruction union. Everything else (annotations,
// signatures, inner classes) is carried opaquely inside the original
// bytes and survives serialization untouched.
package classfile

import (
	"fmt"

	"github.com/bytecut/bytecut/pkg/model"
	"github.com/zeebo/blake3"
)

const classMagic = 0xcafebabe

// Constant pool tags (JVMS table 4.4-A).
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// cpEntry is one constant pool slot. Long and double constants occupy
// two slots; the phantom second slot has tag 0.
type cpEntry struct {
	tag  uint8
	str  string // Utf8 payload
	ref1 uint16
	ref2 uint16
}

type constPool struct {
	entries []cpEntry
}

func (p *constPool) entry(i uint16) (*cpEntry, error) {
	if int(i) >= len(p.entries) || i == 0 {
		return nil, fmt.Errorf("classfile: constant pool index %d out of range", i)
	}
	return &p.entries[i], nil
}

// utf8 resolves a Utf8 constant.
func (p *constPool) utf8(i uint16) (string, error) {
	e, err := p.entry(i)
	if err != nil {
		return "", err
	}
	if e.tag != tagUtf8 {
		return "", fmt.Errorf("classfile: constant %d is tag %d, want Utf8", i, e.tag)
	}
	return e.str, nil
}

// className resolves a Class constant to its internal name.
func (p *constPool) className(i uint16) (string, error) {
	e, err := p.entry(i)
	if err != nil {
		return "", err
	}
	if e.tag != tagClass {
		return "", fmt.Errorf("classfile: constant %d is tag %d, want Class", i, e.tag)
	}
	return p.utf8(e.ref1)
}

// memberRef resolves a Fieldref/Methodref/InterfaceMethodref constant
// to (owner, name, descriptor).
func (p *constPool) memberRef(i uint16) (owner, name, desc string, err error) {
	e, err := p.entry(i)
	if err != nil {
		return "", "", "", err
	}
	switch e.tag {
	case tagFieldref, tagMethodref, tagInterfaceMethodref:
	default:
		return "", "", "", fmt.Errorf("classfile: constant %d is tag %d, want member ref", i, e.tag)
	}
	if owner, err = p.className(e.ref1); err != nil {
		return "", "", "", err
	}
	nat, err := p.entry(e.ref2)
	if err != nil {
		return "", "", "", err
	}
	if nat.tag != tagNameAndType {
		return "", "", "", fmt.Errorf("classfile: constant %d is tag %d, want NameAndType", e.ref2, nat.tag)
	}
	if name, err = p.utf8(nat.ref1); err != nil {
		return "", "", "", err
	}
	if desc, err = p.utf8(nat.ref2); err != nil {
		return "", "", "", err
	}
	return owner, name, desc, nil
}

// Parse decodes a single class file into a ClassEntry. Descriptors are
// treated as opaque strings; no syntax validation happens here.
func Parse(data []byte) (*model.ClassEntry, error) {
	r := newReader(data)

	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("classfile: bad magic 0x%08x", magic)
	}
	// minor, major
	if err := r.skip(4); err != nil {
		return nil, err
	}

	pool, err := parseConstPool(r)
	if err != nil {
		return nil, err
	}

	// access_flags
	if err := r.skip(2); err != nil {
		return nil, err
	}

	entry := &model.ClassEntry{Raw: data, Digest: blake3.Sum256(data)}

	thisClass, err := r.u16()
	if err != nil {
		return nil, err
	}
	if entry.Name, err = pool.className(thisClass); err != nil {
		return nil, err
	}

	superClass, err := r.u16()
	if err != nil {
		return nil, err
	}
	if superClass != 0 {
		// java/lang/Object has no super class.
		if entry.SuperName, err = pool.className(superClass); err != nil {
			return nil, err
		}
	}

	ifaceCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u16()
		if err != nil {
			return nil, err
		}
		name, err := pool.className(idx)
		if err != nil {
			return nil, err
		}
		entry.Interfaces = append(entry.Interfaces, name)
	}

	if err := parseFields(r, pool, entry); err != nil {
		return nil, err
	}
	if err := parseMethods(r, pool, entry); err != nil {
		return nil, err
	}

	// Class-level attributes are left to the raw bytes.
	return entry, nil
}

func parseConstPool(r *reader) (*constPool, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	pool := &constPool{entries: make([]cpEntry, 1, count)}
	for len(pool.entries) < int(count) {
		tag, err := r.u8()
		if err != nil {
			return nil, err
		}
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n, err := r.u16()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			e.str = string(b)
		case tagInteger, tagFloat:
			if err := r.skip(4); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if err := r.skip(8); err != nil {
				return nil, err
			}
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			if e.ref1, err = r.u16(); err != nil {
				return nil, err
			}
		case tagMethodHandle:
			if err := r.skip(1); err != nil {
				return nil, err
			}
			if e.ref1, err = r.u16(); err != nil {
				return nil, err
			}
		case tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			if e.ref1, err = r.u16(); err != nil {
				return nil, err
			}
			if e.ref2, err = r.u16(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("classfile: unknown constant pool tag %d", tag)
		}
		pool.entries = append(pool.entries, e)
		if tag == tagLong || tag == tagDouble {
			// 8-byte constants take two pool slots (JVMS §4.4.5).
			pool.entries = append(pool.entries, cpEntry{})
		}
	}
	return pool, nil
}

func parseFields(r *reader, pool *constPool, entry *model.ClassEntry) error {
	count, err := r.u16()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		flags, err := r.u16()
		if err != nil {
			return err
		}
		nameIdx, err := r.u16()
		if err != nil {
			return err
		}
		descIdx, err := r.u16()
		if err != nil {
			return err
		}
		name, err := pool.utf8(nameIdx)
		if err != nil {
			return err
		}
		desc, err := pool.utf8(descIdx)
		if err != nil {
			return err
		}
		if err := skipAttributes(r); err != nil {
			return err
		}
		entry.Fields = append(entry.Fields, model.FieldEntry{Name: name, Desc: desc, Flags: flags})
	}
	return nil
}

func parseMethods(r *reader, pool *constPool, entry *model.ClassEntry) error {
	entry.MethodsCountOffset = r.off
	count, err := r.u16()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		start := r.off
		flags, err := r.u16()
		if err != nil {
			return err
		}
		nameIdx, err := r.u16()
		if err != nil {
			return err
		}
		descIdx, err := r.u16()
		if err != nil {
			return err
		}
		name, err := pool.utf8(nameIdx)
		if err != nil {
			return err
		}
		desc, err := pool.utf8(descIdx)
		if err != nil {
			return err
		}

		m := &model.MethodEntry{Owner: entry.Name, Name: name, Desc: desc, Flags: flags}

		attrCount, err := r.u16()
		if err != nil {
			return err
		}
		for j := 0; j < int(attrCount); j++ {
			attrName, attrData, err := readAttribute(r, pool)
			if err != nil {
				return err
			}
			if attrName == "Code" {
				insns, err := decodeCode(attrData, pool)
				if err != nil {
					return fmt.Errorf("classfile: method %s: %w", m.Ref(), err)
				}
				m.Instructions = insns
			}
		}

		m.Span = model.ByteSpan{Start: start, End: r.off}
		entry.AddMethod(m)
	}
	entry.MethodsEndOffset = r.off
	return nil
}

func readAttribute(r *reader, pool *constPool) (string, []byte, error) {
	nameIdx, err := r.u16()
	if err != nil {
		return "", nil, err
	}
	length, err := r.u32()
	if err != nil {
		return "", nil, err
	}
	name, err := pool.utf8(nameIdx)
	if err != nil {
		return "", nil, err
	}
	data, err := r.bytes(int(length))
	if err != nil {
		return "", nil, err
	}
	return name, data, nil
}

func skipAttributes(r *reader) error {
	count, err := r.u16()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := r.skip(2); err != nil {
			return err
		}
		length, err := r.u32()
		if err != nil {
			return err
		}
		if err := r.skip(int(length)); err != nil {
			return err
		}
	}
	return nil
}
