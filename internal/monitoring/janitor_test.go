package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/isdelr/feedhub/internal/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles struct {
	files   []images.File
	removed []string
	failOn  string
}

func (f *fakeFiles) List() ([]images.File, error) { return f.files, nil }

func (f *fakeFiles) Remove(path string) error {
	if path == f.failOn {
		return errors.New("permission denied")
	}
	f.removed = append(f.removed, path)
	return nil
}

type fakeRefs map[string]bool

func (r fakeRefs) ImageURLs(context.Context) (map[string]bool, error) { return r, nil }

func TestSweepRemovesOldOrphans(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	files := &fakeFiles{files: []images.File{
		{Path: "images/1-used.png", ModTime: now.Add(-72 * time.Hour)},
		{Path: "images/2-orphan.png", ModTime: now.Add(-72 * time.Hour)},
		{Path: "images/3-fresh.png", ModTime: now.Add(-time.Hour)},
	}}
	j := NewImageJanitor(files, fakeRefs{"images/1-used.png": true}, "@every 1h", 24*time.Hour)
	j.now = func() time.Time { return now }

	removed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"images/2-orphan.png"}, files.removed)
}

func TestSweepContinuesPastRemoveFailures(t *testing.T) {
	now := time.Now()
	old := now.Add(-48 * time.Hour)
	files := &fakeFiles{
		files: []images.File{
			{Path: "images/1-a.png", ModTime: old},
			{Path: "images/2-b.png", ModTime: old},
		},
		failOn: "images/1-a.png",
	}
	j := NewImageJanitor(files, fakeRefs{}, "@every 1h", 24*time.Hour)

	removed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"images/2-b.png"}, files.removed)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	j := NewImageJanitor(&fakeFiles{}, fakeRefs{}, "not a schedule", time.Hour)
	assert.Error(t, j.Start())
}

func TestStartAndStop(t *testing.T) {
	j := NewImageJanitor(&fakeFiles{}, fakeRefs{}, "@every 1h", time.Hour)
	require.NoError(t, j.Start())
	j.Stop()
}

func TestStatUpdaterPublishesSamples(t *testing.T) {
	su := NewStatUpdater(10 * time.Millisecond)
	calls := make(chan struct{}, 10)
	su.sample = func() (float64, float64, error) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return 12.5, 40, nil
	}

	go su.Run()
	defer su.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("sampler was not called")
		}
	}
}
