// Package testutil builds synthetic JVM class files for tests. The
// builder emits structurally valid bytes: a deduplicated constant
// pool, class identity, and methods with optional Code attributes and
// line number tables.
package testutil

import (
	"bytes"
	"encoding/binary"
)

// Bytecode opcodes used by test fixtures.
const (
	OpReturn          = 177
	OpNop             = 0
	OpIconst0         = 3
	OpGetstatic       = 178
	OpPutstatic       = 179
	OpInvokevirtual   = 182
	OpInvokespecial   = 183
	OpInvokestatic    = 184
	OpInvokeinterface = 185
	OpLdc2w           = 20
	OpBipush          = 16
	OpIload           = 21
	OpIstore          = 54
	OpIinc            = 132
	OpTableswitch     = 170
	OpPop             = 87
)

// LineEntry is one LineNumberTable row.
type LineEntry struct {
	StartPC uint16
	Line    uint16
}

type testMethod struct {
	flags uint16
	name  string
	desc  string
	code  []byte
	lines []LineEntry
}

// ClassFile accumulates a synthetic class and serializes it on Bytes.
// Constant pool indices handed out by Methodref and friends stay valid
// for the lifetime of the builder.
type ClassFile struct {
	name       string
	super      string
	interfaces []string
	methods    []testMethod

	cp      bytes.Buffer
	cpCount uint16
	utf8s   map[string]uint16
	classes map[string]uint16
	nats    map[string]uint16
	members map[string]uint16
}

// NewClassFile starts a class with the given internal name and super
// class. An empty super emits super_class index 0, as java/lang/Object
// does.
func NewClassFile(name, super string) *ClassFile {
	return &ClassFile{
		name:    name,
		super:   super,
		cpCount: 1,
		utf8s:   make(map[string]uint16),
		classes: make(map[string]uint16),
		nats:    make(map[string]uint16),
		members: make(map[string]uint16),
	}
}

// Implements adds interface internal names.
func (c *ClassFile) Implements(names ...string) *ClassFile {
	c.interfaces = append(c.interfaces, names...)
	return c
}

// Utf8 interns a modified-UTF8 constant and returns its index.
func (c *ClassFile) Utf8(s string) uint16 {
	if idx, ok := c.utf8s[s]; ok {
		return idx
	}
	c.cp.WriteByte(1)
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	c.cp.Write(n[:])
	c.cp.WriteString(s)
	idx := c.cpCount
	c.cpCount++
	c.utf8s[s] = idx
	return idx
}

// Class interns a Class constant and returns its index.
func (c *ClassFile) Class(name string) uint16 {
	if idx, ok := c.classes[name]; ok {
		return idx
	}
	nameIdx := c.Utf8(name)
	c.cp.WriteByte(7)
	c.writeU16(nameIdx)
	idx := c.cpCount
	c.cpCount++
	c.classes[name] = idx
	return idx
}

// Long interns a Long constant, which occupies two pool slots.
func (c *ClassFile) Long(v uint64) uint16 {
	c.cp.WriteByte(5)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	c.cp.Write(b[:])
	idx := c.cpCount
	c.cpCount += 2
	return idx
}

func (c *ClassFile) nameAndType(name, desc string) uint16 {
	key := name + ":" + desc
	if idx, ok := c.nats[key]; ok {
		return idx
	}
	nameIdx := c.Utf8(name)
	descIdx := c.Utf8(desc)
	c.cp.WriteByte(12)
	c.writeU16(nameIdx)
	c.writeU16(descIdx)
	idx := c.cpCount
	c.cpCount++
	c.nats[key] = idx
	return idx
}

func (c *ClassFile) member(tag byte, owner, name, desc string) uint16 {
	key := string(rune(tag)) + owner + "." + name + desc
	if idx, ok := c.members[key]; ok {
		return idx
	}
	ownerIdx := c.Class(owner)
	natIdx := c.nameAndType(name, desc)
	c.cp.WriteByte(tag)
	c.writeU16(ownerIdx)
	c.writeU16(natIdx)
	idx := c.cpCount
	c.cpCount++
	c.members[key] = idx
	return idx
}

// Methodref interns a Methodref constant and returns its index.
func (c *ClassFile) Methodref(owner, name, desc string) uint16 {
	return c.member(10, owner, name, desc)
}

// InterfaceMethodref interns an InterfaceMethodref constant.
func (c *ClassFile) InterfaceMethodref(owner, name, desc string) uint16 {
	return c.member(11, owner, name, desc)
}

// Fieldref interns a Fieldref constant and returns its index.
func (c *ClassFile) Fieldref(owner, name, desc string) uint16 {
	return c.member(9, owner, name, desc)
}

// Method adds a method with a Code attribute holding the given
// bytecode. A nil code slice adds the method without a Code attribute,
// as abstract and native methods are declared.
func (c *ClassFile) Method(flags uint16, name, desc string, code []byte, lines ...LineEntry) *ClassFile {
	c.methods = append(c.methods, testMethod{flags: flags, name: name, desc: desc, code: code, lines: lines})
	return c
}

func (c *ClassFile) writeU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	c.cp.Write(b[:])
}

// Bytes serializes the class file.
func (c *ClassFile) Bytes() []byte {
	thisIdx := c.Class(c.name)
	superIdx := uint16(0)
	if c.super != "" {
		superIdx = c.Class(c.super)
	}
	ifaceIdxs := make([]uint16, len(c.interfaces))
	for i, name := range c.interfaces {
		ifaceIdxs[i] = c.Class(name)
	}

	type serMethod struct {
		m       testMethod
		nameIdx uint16
		descIdx uint16
		attrs   []byte
	}
	sers := make([]serMethod, 0, len(c.methods))
	for _, m := range c.methods {
		sm := serMethod{m: m, nameIdx: c.Utf8(m.name), descIdx: c.Utf8(m.desc)}
		if m.code != nil {
			sm.attrs = c.codeAttr(m)
		}
		sers = append(sers, sm)
	}

	var out bytes.Buffer
	w16 := func(v uint16) {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], v)
		out.Write(b[:])
	}
	w32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		out.Write(b[:])
	}

	w32(0xcafebabe)
	w16(0)  // minor
	w16(52) // major, Java 8
	w16(c.cpCount)
	out.Write(c.cp.Bytes())
	w16(0x0021) // ACC_PUBLIC | ACC_SUPER
	w16(thisIdx)
	w16(superIdx)
	w16(uint16(len(ifaceIdxs)))
	for _, idx := range ifaceIdxs {
		w16(idx)
	}
	w16(0) // fields_count

	w16(uint16(len(sers)))
	for _, sm := range sers {
		w16(sm.m.flags)
		w16(sm.nameIdx)
		w16(sm.descIdx)
		if sm.attrs == nil {
			w16(0)
		} else {
			w16(1)
			out.Write(sm.attrs)
		}
	}

	w16(0) // class attributes_count
	return out.Bytes()
}

// codeAttr serializes one Code attribute, including its name index and
// length header. Pool entries it needs are interned as a side effect,
// so it must run before the pool is emitted.
func (c *ClassFile) codeAttr(m testMethod) []byte {
	codeNameIdx := c.Utf8("Code")

	var inner bytes.Buffer
	w16 := func(v uint16) {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], v)
		inner.Write(b[:])
	}
	w16(8) // max_stack
	w16(8) // max_locals
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(m.code)))
	inner.Write(l[:])
	inner.Write(m.code)
	w16(0) // exception_table_length
	if len(m.lines) == 0 {
		w16(0)
	} else {
		lntNameIdx := c.Utf8("LineNumberTable")
		w16(1)
		w16(lntNameIdx)
		binary.BigEndian.PutUint32(l[:], uint32(2+4*len(m.lines)))
		inner.Write(l[:])
		w16(uint16(len(m.lines)))
		for _, e := range m.lines {
			w16(e.StartPC)
			w16(e.Line)
		}
	}

	var out bytes.Buffer
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], codeNameIdx)
	out.Write(b[:])
	binary.BigEndian.PutUint32(l[:], uint32(inner.Len()))
	out.Write(l[:])
	out.Write(inner.Bytes())
	return out.Bytes()
}

// Invoke emits an invocation instruction for the pool index.
// invokeinterface carries its count and zero operand bytes.
func Invoke(op byte, idx uint16) []byte {
	b := []byte{op, byte(idx >> 8), byte(idx)}
	if op == OpInvokeinterface {
		b = append(b, 1, 0)
	}
	return b
}

// Field emits a field access instruction for the pool index.
func Field(op byte, idx uint16) []byte {
	return []byte{op, byte(idx >> 8), byte(idx)}
}

// Code concatenates instruction byte chunks into one bytecode body.
func Code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
