// Package model holds the in-memory representation of an analyzed class
// group: classes, methods, instructions, and their identities. All
// transformation passes operate on this model in place.
package model

import "fmt"

// Privileged method names with implicit invocation semantics. Methods
// with these names are never removable.
const (
	ConstructorName = "<init>"
	StaticInitName  = "<clinit>"
)

// Method access flags (JVMS table 4.6-A). Only the flags the analysis
// cares about are named.
const (
	AccPublic    uint16 = 0x0001
	AccPrivate   uint16 = 0x0002
	AccProtected uint16 = 0x0004
	AccStatic    uint16 = 0x0008
	AccFinal     uint16 = 0x0010
	AccNative    uint16 = 0x0100
	AccAbstract  uint16 = 0x0400
	AccSynthetic uint16 = 0x1000
)

// MethodRef builds the canonical reference string for a method:
// owner + "." + name + descriptor. Reference strings are the map keys
// used throughout the analysis.
func MethodRef(owner, name, desc string) string {
	return owner + "." + name + desc
}

// Instruction is one entry of a method's instruction sequence. It is a
// closed union: FieldInsn, InvokeInsn, OpInsn, or LineInsn.
type Instruction interface {
	// Opcode returns the JVM opcode, or 0 for pseudo-instructions
	// such as line markers.
	Opcode() uint8

	isInstruction()
}

// FieldInsn is a field access instruction (getfield, putfield,
// getstatic, putstatic).
type FieldInsn struct {
	Op    uint8
	Owner string
	Name  string
}

func (i FieldInsn) Opcode() uint8  { return i.Op }
func (i FieldInsn) isInstruction() {}

// InvokeInsn is a method invocation instruction (invokevirtual,
// invokespecial, invokestatic, invokeinterface). Only invocation
// instructions contribute call-graph edges.
type InvokeInsn struct {
	Op    uint8
	Owner string
	Name  string
	Desc  string
}

func (i InvokeInsn) Opcode() uint8  { return i.Op }
func (i InvokeInsn) isInstruction() {}

// Ref returns the reference string of the invocation target.
func (i InvokeInsn) Ref() string {
	return MethodRef(i.Owner, i.Name, i.Desc)
}

// OpInsn is a generic instruction identified by its opcode alone.
type OpInsn struct {
	Op uint8
}

func (i OpInsn) Opcode() uint8  { return i.Op }
func (i OpInsn) isInstruction() {}

// LineInsn is a source line marker. Debug-only; it carries no opcode
// and contributes nothing to the call graph or the structural hash.
type LineInsn struct {
	Line uint16
}

func (i LineInsn) Opcode() uint8  { return 0 }
func (i LineInsn) isInstruction() {}

// FieldEntry is a declared field. Fields are carried for completeness;
// no pass currently mutates them.
type FieldEntry struct {
	Name  string
	Desc  string
	Flags uint16
}

// ByteSpan is a half-open [Start, End) range into a class file's raw
// bytes. The parser records one per method so the serializer can
// splice removed methods out without rebuilding the constant pool.
type ByteSpan struct {
	Start int
	End   int
}

// MethodEntry is one declared method. Identity is the
// (owner, name, descriptor) triple; Ref() is its canonical string
// form, unique within the owning ClassGroup.
type MethodEntry struct {
	Owner string
	Name  string
	Desc  string
	Flags uint16

	Instructions []Instruction

	// Span locates the method_info bytes inside the owning class
	// file. Zero for methods not produced by the class file parser.
	Span ByteSpan
}

// Ref returns the canonical reference string for this method.
func (m *MethodEntry) Ref() string {
	return MethodRef(m.Owner, m.Name, m.Desc)
}

// IsStatic reports whether the method has the static access flag.
func (m *MethodEntry) IsStatic() bool {
	return m.Flags&AccStatic != 0
}

// IsInitializer reports whether the method is an instance constructor
// or the static initializer. Initializers are implicitly invoked by
// the runtime and always classified used.
func (m *MethodEntry) IsInitializer() bool {
	return m.Name == ConstructorName || m.Name == StaticInitName
}

// ReturnDesc returns the return type portion of the descriptor (the
// text after the closing parenthesis). Malformed descriptors are
// tolerated: if no parenthesis is present the whole descriptor is
// returned.
func (m *MethodEntry) ReturnDesc() string {
	for i := len(m.Desc) - 1; i >= 0; i-- {
		if m.Desc[i] == ')' {
			return m.Desc[i+1:]
		}
	}
	return m.Desc
}

// ClassEntry is one class of the analyzed program. SuperName and
// interface names may reference platform types outside the group.
type ClassEntry struct {
	Name       string
	SuperName  string
	Interfaces []string
	Fields     []FieldEntry
	Methods    []*MethodEntry

	// Raw is the original class file content, kept so untouched
	// classes round-trip byte-identical.
	Raw []byte

	// Digest is the blake3 sum of Raw.
	Digest [32]byte

	// MethodsCountOffset is the offset of the u2 methods_count field
	// inside Raw, and MethodsEndOffset the offset just past the last
	// method_info. Used by the serializer when splicing methods.
	MethodsCountOffset int
	MethodsEndOffset   int

	refs map[string]*MethodEntry
}

// AddMethod appends a method to the entry. A reference collision
// inside one class violates the model's uniqueness invariant and is a
// defect in the caller, not a runtime condition.
func (c *ClassEntry) AddMethod(m *MethodEntry) {
	if c.refs == nil {
		c.refs = make(map[string]*MethodEntry)
	}
	ref := m.Ref()
	if _, ok := c.refs[ref]; ok {
		panic(fmt.Sprintf("model: duplicate method reference %s", ref))
	}
	c.refs[ref] = m
	c.Methods = append(c.Methods, m)
}

// Method returns the method with the given reference string, or nil.
func (c *ClassEntry) Method(ref string) *MethodEntry {
	return c.refs[ref]
}

// RemoveMethod deletes the method with the given reference string in
// place. It reports whether a method was removed. Iteration over other
// entries is unaffected.
func (c *ClassEntry) RemoveMethod(ref string) bool {
	m, ok := c.refs[ref]
	if !ok {
		return false
	}
	delete(c.refs, ref)
	for i, cand := range c.Methods {
		if cand == m {
			c.Methods = append(c.Methods[:i], c.Methods[i+1:]...)
			break
		}
	}
	return true
}

// ClassGroup is the entire analyzed program: an ordered collection of
// classes, unique by internal name. It is constructed once from parsed
// input, mutated by passes, and consumed once at serialization.
type ClassGroup struct {
	classes []*ClassEntry
	byName  map[string]*ClassEntry
}

// NewClassGroup returns an empty group.
func NewClassGroup() *ClassGroup {
	return &ClassGroup{byName: make(map[string]*ClassEntry)}
}

// Add appends a class to the group. A duplicate internal name means
// the input archive is malformed; the whole pipeline must abort before
// any pass runs.
func (g *ClassGroup) Add(c *ClassEntry) error {
	if _, ok := g.byName[c.Name]; ok {
		return fmt.Errorf("model: duplicate class %s in group", c.Name)
	}
	g.byName[c.Name] = c
	g.classes = append(g.classes, c)
	return nil
}

// Classes returns the classes in insertion order. The returned slice
// is the group's own backing store; callers must not reorder it.
func (g *ClassGroup) Classes() []*ClassEntry {
	return g.classes
}

// Lookup returns the class with the given internal name, or nil when
// the name is not part of the group (an external platform type).
func (g *ClassGroup) Lookup(name string) *ClassEntry {
	return g.byName[name]
}

// Len returns the number of classes in the group.
func (g *ClassGroup) Len() int {
	return len(g.classes)
}

// MethodCount returns the total number of declared methods.
func (g *ClassGroup) MethodCount() int {
	n := 0
	for _, c := range g.classes {
		n += len(c.Methods)
	}
	return n
}
