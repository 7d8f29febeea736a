package duplicates

import (
	"strings"
	"testing"

	"github.com/bytecut/bytecut/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticMethod(owner, name, desc string, insns ...model.Instruction) *model.MethodEntry {
	return &model.MethodEntry{
		Owner:        owner,
		Name:         name,
		Desc:         desc,
		Flags:        model.AccStatic,
		Instructions: insns,
	}
}

func groupOf(t *testing.T, methods ...*model.MethodEntry) *model.ClassGroup {
	t.Helper()
	g := model.NewClassGroup()
	byOwner := map[string]*model.ClassEntry{}
	for _, m := range methods {
		c := byOwner[m.Owner]
		if c == nil {
			c = &model.ClassEntry{Name: m.Owner, SuperName: "java/lang/Object"}
			byOwner[m.Owner] = c
			require.NoError(t, g.Add(c))
		}
		c.AddMethod(m)
	}
	return g
}

func groupKeys(a *Analysis) map[string]string {
	keys := make(map[string]string)
	for _, g := range a.Groups {
		for _, m := range g.Members {
			keys[m.Ref] = g.Key
		}
	}
	return keys
}

var (
	addOp  = model.OpInsn{Op: 96}
	mulOp  = model.OpInsn{Op: 104}
	retOp  = model.OpInsn{Op: 172}
	call   = model.InvokeInsn{Op: 184, Owner: "com/example/Util", Name: "f", Desc: "(I)I"}
	getFld = model.FieldInsn{Op: 178, Owner: "com/example/Cfg", Name: "flag"}
)

// Reordering and repetition collapse away: bodies over the same
// fingerprint set share a group.
func TestReorderedAndRepeatedBodiesShareGroup(t *testing.T) {
	a := staticMethod("com/example/A", "a", "(II)I", addOp, mulOp, retOp)
	b := staticMethod("com/example/B", "b", "(II)I", mulOp, addOp, retOp)
	c := staticMethod("com/example/C", "c", "(II)I", addOp, addOp, mulOp, retOp)

	analysis := GroupStatics(groupOf(t, a, b, c))

	keys := groupKeys(analysis)
	assert.Equal(t, keys["com/example/A.a(II)I"], keys["com/example/B.b(II)I"])
	assert.Equal(t, keys["com/example/A.a(II)I"], keys["com/example/C.c(II)I"])

	require.Len(t, analysis.Clusters, 1)
	assert.Len(t, analysis.Clusters[0].Members, 3)
	assert.Equal(t, 1, analysis.Summary.DuplicateGroups)
	assert.Equal(t, 3, analysis.Summary.DuplicateCount)
}

func TestDifferentReturnTypesSplitGroups(t *testing.T) {
	a := staticMethod("com/example/A", "a", "(II)I", addOp, retOp)
	b := staticMethod("com/example/B", "b", "(II)J", addOp, retOp)

	analysis := GroupStatics(groupOf(t, a, b))

	keys := groupKeys(analysis)
	assert.NotEqual(t, keys["com/example/A.a(II)I"], keys["com/example/B.b(II)J"])
	assert.Empty(t, analysis.Clusters)
}

func TestLineRangeSplitsGroups(t *testing.T) {
	a := staticMethod("com/example/A", "a", "()V",
		model.LineInsn{Line: 10}, addOp, model.LineInsn{Line: 12}, retOp)
	b := staticMethod("com/example/B", "b", "()V",
		model.LineInsn{Line: 30}, addOp, model.LineInsn{Line: 32}, retOp)
	c := staticMethod("com/example/C", "c", "()V",
		model.LineInsn{Line: 10}, addOp, model.LineInsn{Line: 12}, retOp)

	analysis := GroupStatics(groupOf(t, a, b, c))

	keys := groupKeys(analysis)
	assert.Equal(t, keys["com/example/A.a()V"], keys["com/example/C.c()V"])
	assert.NotEqual(t, keys["com/example/A.a()V"], keys["com/example/B.b()V"])
	assert.True(t, strings.Contains(keys["com/example/A.a()V"], ".10-12."))
	assert.True(t, strings.Contains(keys["com/example/B.b()V"], ".30-32."))
}

func TestBodiesWithoutLineMarkersUseWildcardRange(t *testing.T) {
	a := staticMethod("com/example/A", "a", "()V", retOp)

	analysis := GroupStatics(groupOf(t, a))

	require.Len(t, analysis.Groups, 1)
	assert.True(t, strings.HasPrefix(analysis.Groups[0].Key, "V.*."), analysis.Groups[0].Key)
}

// Invoke fingerprints carry owner and name but not the descriptor;
// field fingerprints carry owner, name, and opcode.
func TestFingerprintSensitivity(t *testing.T) {
	callOther := model.InvokeInsn{Op: 184, Owner: "com/example/Util", Name: "g", Desc: "(I)I"}
	putFld := model.FieldInsn{Op: 179, Owner: "com/example/Cfg", Name: "flag"}

	a := staticMethod("com/example/A", "a", "()V", call, getFld, retOp)
	b := staticMethod("com/example/B", "b", "()V", callOther, getFld, retOp)
	c := staticMethod("com/example/C", "c", "()V", call, putFld, retOp)
	d := staticMethod("com/example/D", "d", "()V", call, getFld, retOp)

	analysis := GroupStatics(groupOf(t, a, b, c, d))

	keys := groupKeys(analysis)
	assert.NotEqual(t, keys["com/example/A.a()V"], keys["com/example/B.b()V"])
	assert.NotEqual(t, keys["com/example/A.a()V"], keys["com/example/C.c()V"])
	assert.Equal(t, keys["com/example/A.a()V"], keys["com/example/D.d()V"])
}

func TestExactHashDistinguishesOrder(t *testing.T) {
	a := staticMethod("com/example/A", "a", "(II)I", addOp, mulOp, retOp)
	b := staticMethod("com/example/B", "b", "(II)I", mulOp, addOp, retOp)
	c := staticMethod("com/example/C", "c", "(II)I", addOp, mulOp, retOp)

	analysis := GroupStatics(groupOf(t, a, b, c))

	require.Len(t, analysis.Clusters, 1)
	members := analysis.Clusters[0].Members
	require.Len(t, members, 3)

	hashes := map[string]string{}
	for _, m := range members {
		hashes[m.Ref] = m.ExactHash
	}
	assert.Equal(t, hashes["com/example/A.a(II)I"], hashes["com/example/C.c(II)I"])
	assert.NotEqual(t, hashes["com/example/A.a(II)I"], hashes["com/example/B.b(II)I"])
}

func TestOnlyStaticNonInitializersAreGrouped(t *testing.T) {
	instance := &model.MethodEntry{Owner: "com/example/A", Name: "a", Desc: "()V",
		Instructions: []model.Instruction{retOp}}
	clinit := &model.MethodEntry{Owner: "com/example/A", Name: "<clinit>", Desc: "()V",
		Flags: model.AccStatic, Instructions: []model.Instruction{retOp}}
	eligible := staticMethod("com/example/A", "b", "()V", retOp)

	analysis := GroupStatics(groupOf(t, instance, clinit, eligible))

	assert.Equal(t, 1, analysis.Summary.MethodsGrouped)
	require.Len(t, analysis.Groups, 1)
	assert.Equal(t, "com/example/A.b()V", analysis.Groups[0].Members[0].Ref)
}

// Every eligible method lands in exactly one group.
func TestPartitionIsComplete(t *testing.T) {
	a := staticMethod("com/example/A", "a", "(II)I", addOp, retOp)
	b := staticMethod("com/example/B", "b", "(II)I", mulOp, retOp)
	c := staticMethod("com/example/C", "c", "(II)J", addOp, retOp)

	analysis := GroupStatics(groupOf(t, a, b, c))

	total := 0
	for _, g := range analysis.Groups {
		total += len(g.Members)
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, analysis.Summary.MethodsGrouped)
	assert.Equal(t, 3, analysis.Summary.TotalGroups)
}

func TestPassRetainsResult(t *testing.T) {
	g := groupOf(t,
		staticMethod("com/example/A", "a", "()V", retOp),
		staticMethod("com/example/B", "b", "()V", retOp),
	)

	pass := New()
	assert.Equal(t, "duplicate-groups", pass.Name())
	assert.Nil(t, pass.Result())
	require.NoError(t, pass.Transform(g))
	require.NotNil(t, pass.Result())
	assert.Equal(t, 1, pass.Result().Summary.DuplicateGroups)
	// Grouping never mutates the model.
	assert.Equal(t, 2, g.MethodCount())
}
