package jar

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/bytecut/bytecut/internal/testutil"
	"github.com/bytecut/bytecut/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJAR creates a zip archive from name -> content entries in the
// given order.
func writeJAR(t *testing.T, path string, entries [][2]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(e[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func fooClass(t *testing.T) []byte {
	t.Helper()
	b := testutil.NewClassFile("com/example/Foo", "java/lang/Object")
	b.Method(model.AccPublic, "<init>", "()V", []byte{testutil.OpReturn})
	b.Method(model.AccStatic, "unusedHelper", "()V", []byte{testutil.OpReturn})
	return b.Bytes()
}

func barClass(t *testing.T) []byte {
	t.Helper()
	b := testutil.NewClassFile("com/example/Bar", "java/lang/Object")
	b.Method(model.AccPublic, "<init>", "()V", []byte{testutil.OpReturn})
	return b.Bytes()
}

func TestReadParsesClassesAndResources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.jar")
	writeJAR(t, path, [][2]string{
		{"META-INF/MANIFEST.MF", "Manifest-Version: 1.0\n"},
		{"com/example/Foo.class", string(fooClass(t))},
		{"com/example/Bar.class", string(barClass(t))},
		{"assets/banner.txt", "hello"},
	})

	var ticks atomic.Int64
	archive, err := Read(path, func() { ticks.Add(1) })
	require.NoError(t, err)

	assert.Equal(t, 2, archive.ClassCount())
	assert.Equal(t, 4, archive.EntryCount())
	assert.Equal(t, int64(4), ticks.Load())
	assert.NotNil(t, archive.Group.Lookup("com/example/Foo"))
	assert.NotNil(t, archive.Group.Lookup("com/example/Bar"))

	resources := archive.Resources()
	require.Len(t, resources, 2)
	assert.Equal(t, "META-INF/MANIFEST.MF", resources[0].Name)
	assert.Equal(t, "hello", string(resources[1].Data))
}

func TestReadRejectsDuplicateClass(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.jar")
	data := string(fooClass(t))
	writeJAR(t, path, [][2]string{
		{"com/example/Foo.class", data},
		{"other/com/example/Foo.class", data},
	})

	_, err := Read(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate class")
}

// Multi-release variants under META-INF/versions share internal names
// with their base classes and must ride along as resources.
func TestReadTreatsVersionedClassesAsResources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mr.jar")
	data := string(fooClass(t))
	writeJAR(t, path, [][2]string{
		{"com/example/Foo.class", data},
		{"META-INF/versions/11/com/example/Foo.class", data},
	})

	archive, err := Read(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, archive.ClassCount())
	require.Len(t, archive.Resources(), 1)
	assert.Equal(t, "META-INF/versions/11/com/example/Foo.class", archive.Resources()[0].Name)
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jar")
	out := filepath.Join(dir, "out.jar")
	writeJAR(t, in, [][2]string{
		{"META-INF/MANIFEST.MF", "Manifest-Version: 1.0\n"},
		{"com/example/Foo.class", string(fooClass(t))},
		{"assets/banner.txt", "hello"},
	})

	archive, err := Read(in, nil)
	require.NoError(t, err)
	require.NoError(t, Write(out, archive))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	contents := map[string][]byte{}
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = data
	}

	assert.Equal(t, []string{"META-INF/MANIFEST.MF", "com/example/Foo.class", "assets/banner.txt"}, names)
	assert.Equal(t, fooClass(t), contents["com/example/Foo.class"])
	assert.Equal(t, "hello", string(contents["assets/banner.txt"]))
}

func TestWriteReflectsMethodRemoval(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jar")
	out := filepath.Join(dir, "out.jar")
	writeJAR(t, in, [][2]string{
		{"com/example/Foo.class", string(fooClass(t))},
	})

	archive, err := Read(in, nil)
	require.NoError(t, err)
	foo := archive.Group.Lookup("com/example/Foo")
	require.True(t, foo.RemoveMethod("com/example/Foo.unusedHelper()V"))
	require.NoError(t, Write(out, archive))

	reread, err := Read(out, nil)
	require.NoError(t, err)
	foo = reread.Group.Lookup("com/example/Foo")
	require.NotNil(t, foo)
	require.Len(t, foo.Methods, 1)
	assert.Equal(t, "<init>", foo.Methods[0].Name)
}
