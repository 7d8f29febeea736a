package transform

import (
	"errors"
	"testing"

	"github.com/bytecut/bytecut/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePass struct {
	name string
	err  error
	log  *[]string
}

func (p *fakePass) Name() string { return p.name }

func (p *fakePass) Transform(group *model.ClassGroup) error {
	*p.log = append(*p.log, p.name)
	return p.err
}

func TestRunSequencesPasses(t *testing.T) {
	var log []string
	var observed []string
	pipeline := New(
		&fakePass{name: "first", log: &log},
		&fakePass{name: "second", log: &log},
	).WithObserver(func(pass string) {
		observed = append(observed, pass)
	})

	require.NoError(t, pipeline.Run(model.NewClassGroup()))
	assert.Equal(t, []string{"first", "second"}, log)
	assert.Equal(t, []string{"first", "second"}, observed)
}

func TestRunAbortsOnError(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	pipeline := New(
		&fakePass{name: "first", log: &log},
		&fakePass{name: "failing", log: &log, err: boom},
		&fakePass{name: "never", log: &log},
	)

	err := pipeline.Run(model.NewClassGroup())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, []string{"first", "failing"}, log)
}

func TestRunEmptyPipeline(t *testing.T) {
	require.NoError(t, New().Run(model.NewClassGroup()))
}
