package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOnEmptyDirectory(t *testing.T) {
	s := Open(t.TempDir())

	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSavePartialMergesWithoutClobbering(t *testing.T) {
	s := Open(t.TempDir())

	require.NoError(t, s.SavePartial(map[string]string{
		KeyHideNav:    "true",
		KeyHideHeader: "false",
	}))
	require.NoError(t, s.SavePartial(map[string]string{
		KeyHideHeader: "true",
	}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		KeyHideNav:    "true",
		KeyHideHeader: "true",
	}, got)
}

func TestSavePartialSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s := Open(dir)
	require.NoError(t, s.SavePartial(map[string]string{KeyHideNav: "true"}))

	reopened := Open(dir)
	val, ok := reopened.Get(KeyHideNav)
	assert.True(t, ok)
	assert.Equal(t, "true", val)
}
