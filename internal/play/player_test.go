package play

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/loopcap/internal/process"
)

type fakeSpawner struct {
	specs []process.Spec
	err   error
}

func (f *fakeSpawner) Spawn(spec process.Spec) (*process.Handle, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	return &process.Handle{Kind: spec.Kind}, nil
}

func onlyHave(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func tempWAV(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "record_20240301_101500.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))
	return path
}

func TestPlay_PrefersFirstAvailablePlayer(t *testing.T) {
	spawner := &fakeSpawner{}
	p := New(spawner)
	p.lookPath = onlyHave("ffplay", "aplay")

	file := tempWAV(t)
	_, err := p.Play(file)
	require.NoError(t, err)

	require.Len(t, spawner.specs, 1)
	spec := spawner.specs[0]
	assert.Equal(t, process.KindPlayer, spec.Kind)
	assert.Equal(t, "ffplay", spec.Command)
	assert.Equal(t, []string{"-nodisp", "-autoexit", file}, spec.Args)
}

func TestPlay_MissingFile(t *testing.T) {
	spawner := &fakeSpawner{}
	p := New(spawner)

	_, err := p.Play(filepath.Join(t.TempDir(), "absent.wav"))
	assert.ErrorContains(t, err, "audio file not found")
	assert.Empty(t, spawner.specs)
}

func TestPlay_NoPlayer(t *testing.T) {
	p := New(&fakeSpawner{})
	p.lookPath = onlyHave()

	_, err := p.Play(tempWAV(t))
	assert.ErrorContains(t, err, "no audio player found")
}

func TestPlay_SpawnFailure(t *testing.T) {
	p := New(&fakeSpawner{err: process.ErrSpawn})
	p.lookPath = onlyHave("aplay")

	_, err := p.Play(tempWAV(t))
	assert.ErrorIs(t, err, process.ErrSpawn)
}
