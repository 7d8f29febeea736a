package classfile

import (
	"testing"

	"github.com/bytecut/bytecut/internal/testutil"
	"github.com/bytecut/bytecut/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassIdentity(t *testing.T) {
	b := testutil.NewClassFile("com/example/Foo", "com/example/Base").
		Implements("java/lang/Runnable", "java/io/Closeable")
	b.Method(model.AccPublic, "run", "()V", []byte{testutil.OpReturn})

	entry, err := Parse(b.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "com/example/Foo", entry.Name)
	assert.Equal(t, "com/example/Base", entry.SuperName)
	assert.Equal(t, []string{"java/lang/Runnable", "java/io/Closeable"}, entry.Interfaces)
	require.Len(t, entry.Methods, 1)
	assert.Equal(t, "com/example/Foo.run()V", entry.Methods[0].Ref())
}

func TestParseRootClassHasNoSuper(t *testing.T) {
	b := testutil.NewClassFile("java/lang/Object", "")
	entry, err := Parse(b.Bytes())
	require.NoError(t, err)
	assert.Empty(t, entry.SuperName)
}

func TestParseBadMagic(t *testing.T) {
	data := testutil.NewClassFile("com/example/Foo", "java/lang/Object").Bytes()
	data[0] = 0xde

	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestParseTruncated(t *testing.T) {
	data := testutil.NewClassFile("com/example/Foo", "java/lang/Object").Bytes()

	_, err := Parse(data[:len(data)-3])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestParseDecodesInvocations(t *testing.T) {
	b := testutil.NewClassFile("com/example/Foo", "java/lang/Object")
	helper := b.Methodref("com/example/Bar", "helper", "(I)V")
	iface := b.InterfaceMethodref("java/lang/Runnable", "run", "()V")
	b.Method(model.AccPublic|model.AccStatic, "main", "([Ljava/lang/String;)V", testutil.Code(
		[]byte{testutil.OpIconst0},
		testutil.Invoke(testutil.OpInvokestatic, helper),
		testutil.Invoke(testutil.OpInvokeinterface, iface),
		[]byte{testutil.OpReturn},
	))

	entry, err := Parse(b.Bytes())
	require.NoError(t, err)

	m := entry.Method("com/example/Foo.main([Ljava/lang/String;)V")
	require.NotNil(t, m)

	var invokes []model.InvokeInsn
	for _, insn := range m.Instructions {
		if inv, ok := insn.(model.InvokeInsn); ok {
			invokes = append(invokes, inv)
		}
	}
	require.Len(t, invokes, 2)
	assert.Equal(t, "com/example/Bar.helper(I)V", invokes[0].Ref())
	assert.Equal(t, "java/lang/Runnable.run()V", invokes[1].Ref())
	assert.Equal(t, uint8(testutil.OpInvokeinterface), invokes[1].Op)
}

func TestParseDecodesInvocationAfterIinc(t *testing.T) {
	b := testutil.NewClassFile("com/example/Loop", "java/lang/Object")
	hit := b.Methodref("p/Target", "hit", "()V")
	b.Method(model.AccPublic, "run", "()V", testutil.Code(
		[]byte{testutil.OpIinc, 1, 1},
		testutil.Invoke(testutil.OpInvokestatic, hit),
		[]byte{testutil.OpReturn},
	))

	entry, err := Parse(b.Bytes())
	require.NoError(t, err)

	var invokes []model.InvokeInsn
	for _, insn := range entry.Methods[0].Instructions {
		if inv, ok := insn.(model.InvokeInsn); ok {
			invokes = append(invokes, inv)
		}
	}
	require.Len(t, invokes, 1)
	assert.Equal(t, "p/Target.hit()V", invokes[0].Ref())
}

func TestParseNarrowOperandsKeepStreamAligned(t *testing.T) {
	b := testutil.NewClassFile("com/example/Loop", "java/lang/Object")
	hit := b.Methodref("p/Target", "hit", "()V")
	b.Method(model.AccPublic, "run", "()V", testutil.Code(
		[]byte{testutil.OpBipush, 5},
		[]byte{testutil.OpIstore, 2},
		[]byte{testutil.OpIload, 2},
		[]byte{testutil.OpPop},
		[]byte{testutil.OpIinc, 2, 0xff}, // iinc 2, -1
		testutil.Invoke(testutil.OpInvokestatic, hit),
		[]byte{testutil.OpReturn},
	))

	entry, err := Parse(b.Bytes())
	require.NoError(t, err)

	insns := entry.Methods[0].Instructions
	require.Len(t, insns, 7)
	inv, ok := insns[5].(model.InvokeInsn)
	require.True(t, ok)
	assert.Equal(t, "p/Target.hit()V", inv.Ref())
	final, ok := insns[6].(model.OpInsn)
	require.True(t, ok)
	assert.Equal(t, uint8(testutil.OpReturn), final.Op)
}

func TestParseDecodesFieldAccess(t *testing.T) {
	b := testutil.NewClassFile("com/example/Foo", "java/lang/Object")
	out := b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	b.Method(model.AccStatic, "touch", "()V", testutil.Code(
		testutil.Field(testutil.OpGetstatic, out),
		[]byte{testutil.OpPop, testutil.OpReturn},
	))

	entry, err := Parse(b.Bytes())
	require.NoError(t, err)

	m := entry.Methods[0]
	require.NotEmpty(t, m.Instructions)
	fld, ok := m.Instructions[0].(model.FieldInsn)
	require.True(t, ok)
	assert.Equal(t, "java/lang/System", fld.Owner)
	assert.Equal(t, "out", fld.Name)
}

func TestParseMergesLineMarkers(t *testing.T) {
	b := testutil.NewClassFile("com/example/Foo", "java/lang/Object")
	b.Method(model.AccStatic, "f", "()V",
		[]byte{testutil.OpNop, testutil.OpNop, testutil.OpReturn},
		testutil.LineEntry{StartPC: 0, Line: 10},
		testutil.LineEntry{StartPC: 2, Line: 12},
	)

	entry, err := Parse(b.Bytes())
	require.NoError(t, err)

	m := entry.Methods[0]
	require.Len(t, m.Instructions, 5)
	assert.Equal(t, model.LineInsn{Line: 10}, m.Instructions[0])
	assert.Equal(t, model.OpInsn{Op: testutil.OpNop}, m.Instructions[1])
	assert.Equal(t, model.LineInsn{Line: 12}, m.Instructions[3])
	assert.Equal(t, model.OpInsn{Op: testutil.OpReturn}, m.Instructions[4])
}

func TestParseAbstractMethodHasNoBody(t *testing.T) {
	b := testutil.NewClassFile("com/example/Foo", "java/lang/Object")
	b.Method(model.AccPublic|model.AccAbstract, "f", "()I", nil)

	entry, err := Parse(b.Bytes())
	require.NoError(t, err)
	require.Len(t, entry.Methods, 1)
	assert.Empty(t, entry.Methods[0].Instructions)
}

// Long and Double constants occupy two pool slots; the parser must
// account for the phantom slot or every later index is off by one.
func TestParseWideConstantSlots(t *testing.T) {
	b := testutil.NewClassFile("com/example/Foo", "java/lang/Object")
	long := b.Long(1 << 40)
	helper := b.Methodref("com/example/Foo", "helper", "()V")
	b.Method(model.AccStatic, "f", "()V", testutil.Code(
		[]byte{testutil.OpLdc2w, byte(long >> 8), byte(long), testutil.OpPop, testutil.OpPop},
		testutil.Invoke(testutil.OpInvokestatic, helper),
		[]byte{testutil.OpReturn},
	))
	b.Method(model.AccStatic, "helper", "()V", []byte{testutil.OpReturn})

	entry, err := Parse(b.Bytes())
	require.NoError(t, err)

	m := entry.Method("com/example/Foo.f()V")
	require.NotNil(t, m)
	var refs []string
	for _, insn := range m.Instructions {
		if inv, ok := insn.(model.InvokeInsn); ok {
			refs = append(refs, inv.Ref())
		}
	}
	assert.Equal(t, []string{"com/example/Foo.helper()V"}, refs)
}

// Switch operands start at a 4-byte boundary relative to the code
// array; the pad depends on the opcode's own offset.
func TestParseTableswitchPadding(t *testing.T) {
	for _, lead := range []int{0, 1, 2, 3} {
		var code []byte
		for i := 0; i < lead; i++ {
			code = append(code, testutil.OpNop)
		}
		code = append(code, testutil.OpTableswitch)
		pad := (3 - lead) % 4
		for i := 0; i < pad; i++ {
			code = append(code, 0)
		}
		// default, low=0, high=1, two offsets
		code = append(code,
			0, 0, 0, 1,
			0, 0, 0, 0,
			0, 0, 0, 1,
			0, 0, 0, 1,
			0, 0, 0, 1,
		)
		code = append(code, testutil.OpReturn)

		b := testutil.NewClassFile("com/example/Foo", "java/lang/Object")
		b.Method(model.AccStatic, "f", "()V", code)

		entry, err := Parse(b.Bytes())
		require.NoError(t, err, "lead %d", lead)
		insns := entry.Methods[0].Instructions
		require.NotEmpty(t, insns, "lead %d", lead)
		assert.Equal(t, model.OpInsn{Op: testutil.OpReturn}, insns[len(insns)-1], "lead %d", lead)
	}
}

func TestParseRecordsMethodSpans(t *testing.T) {
	b := testutil.NewClassFile("com/example/Foo", "java/lang/Object")
	b.Method(model.AccStatic, "a", "()V", []byte{testutil.OpReturn})
	b.Method(model.AccStatic, "b", "()V", []byte{testutil.OpReturn})
	data := b.Bytes()

	entry, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, entry.Methods, 2)

	first, second := entry.Methods[0].Span, entry.Methods[1].Span
	assert.Equal(t, first.End, second.Start)
	assert.Greater(t, first.End, first.Start)
	assert.Equal(t, entry.MethodsCountOffset+2, first.Start)
	assert.Equal(t, entry.MethodsEndOffset, second.End)
}
