// Package jar reads a packaged class archive into a ClassGroup and
// writes a transformed group back out. The analysis core consumes the
// archive only through the ClassGroup abstraction; this package owns
// everything zip-shaped.
package jar

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytecut/bytecut/pkg/classfile"
	"github.com/bytecut/bytecut/pkg/model"
	"github.com/sourcegraph/conc/pool"
)

// ProgressFunc is called once per archive entry as it is processed.
type ProgressFunc func()

// Resource is a non-class archive entry carried through verbatim.
type Resource struct {
	Name string
	Data []byte
}

// entryKind distinguishes parsed classes from passthrough resources in
// the original archive order.
type archiveEntry struct {
	name     string
	class    *model.ClassEntry
	resource *Resource
}

// Archive is a parsed JAR: the class group under analysis plus every
// other entry, in original order.
type Archive struct {
	Group *model.ClassGroup

	order []archiveEntry
}

// Resources returns the passthrough entries in archive order.
func (a *Archive) Resources() []Resource {
	var out []Resource
	for _, e := range a.order {
		if e.resource != nil {
			out = append(out, *e.resource)
		}
	}
	return out
}

// isClassEntry reports whether an archive member should be parsed as a
// class file. Multi-release variants under META-INF/versions would
// collide with their base-name classes, so everything under META-INF
// is carried as a resource.
func isClassEntry(name string) bool {
	return strings.HasSuffix(name, ".class") && !strings.HasPrefix(name, "META-INF/")
}

// Read parses the archive at path. Class entries are parsed in
// parallel and merged in archive order; a duplicate internal name
// aborts before any pass can run.
func Read(path string, onProgress ProgressFunc) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("jar: open %s: %w", path, err)
	}
	defer zr.Close()

	type raw struct {
		name  string
		data  []byte
		class bool
	}

	var raws []raw
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("jar: open entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("jar: read entry %s: %w", f.Name, err)
		}
		raws = append(raws, raw{name: f.Name, data: data, class: isClassEntry(f.Name)})
	}

	// Parse classes in parallel, keeping results indexed so archive
	// order survives the fan-out.
	parsed := make([]*model.ClassEntry, len(raws))
	p := pool.New().WithErrors()
	for i, r := range raws {
		if !r.class {
			if onProgress != nil {
				onProgress()
			}
			continue
		}
		p.Go(func() error {
			entry, err := classfile.Parse(r.data)
			if err != nil {
				return fmt.Errorf("jar: entry %s: %w", r.name, err)
			}
			parsed[i] = entry
			if onProgress != nil {
				onProgress()
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	archive := &Archive{Group: model.NewClassGroup()}
	for i, r := range raws {
		if entry := parsed[i]; entry != nil {
			if err := archive.Group.Add(entry); err != nil {
				return nil, fmt.Errorf("jar: %s: %w", r.name, err)
			}
			archive.order = append(archive.order, archiveEntry{name: r.name, class: entry})
			continue
		}
		res := &Resource{Name: r.name, Data: r.data}
		archive.order = append(archive.order, archiveEntry{name: r.name, resource: res})
	}
	return archive, nil
}

// Write serializes the archive to path, stripping each class to
// reflect method deletions and copying resources verbatim. Entry order
// matches the input archive.
func Write(path string, archive *Archive) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("jar: create %s: %w", path, err)
	}
	zw := zip.NewWriter(f)

	write := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	for _, e := range archive.order {
		switch {
		case e.class != nil:
			// Classes removed from the group by a pass (none of
			// the current passes do this) would be dropped here.
			if archive.Group.Lookup(e.class.Name) == nil {
				continue
			}
			data, err := classfile.Strip(e.class)
			if err != nil {
				zw.Close()
				f.Close()
				return err
			}
			if err := write(e.name, data); err != nil {
				zw.Close()
				f.Close()
				return fmt.Errorf("jar: write %s: %w", e.name, err)
			}
		case e.resource != nil:
			if err := write(e.resource.Name, e.resource.Data); err != nil {
				zw.Close()
				f.Close()
				return fmt.Errorf("jar: write %s: %w", e.resource.Name, err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("jar: finalize %s: %w", path, err)
	}
	return f.Close()
}

// ClassCount returns the number of parsed classes.
func (a *Archive) ClassCount() int {
	return a.Group.Len()
}

// EntryCount returns the number of archive members, classes and
// resources both.
func (a *Archive) EntryCount() int {
	return len(a.order)
}
