package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestEnvPathStaysInSandbox(t *testing.T) {
	env := NewTestEnv(t)

	p := env.Path("sub", "file.txt")
	assert.Equal(t, filepath.Join(env.RootDir(), "sub", "file.txt"), p)
	assert.Equal(t, filepath.Join(env.RootDir(), "cache.db"), env.DatabasePath("cache"))
}

func TestTestEnvWriteFile(t *testing.T) {
	env := NewTestEnv(t)

	env.WriteFile("nested/dir/data.json", []byte(`{}`))

	assert.True(t, env.FileExists("nested/dir/data.json"))
	content, err := os.ReadFile(env.Path("nested/dir/data.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(content))
}

func TestTestEnvChdirRestores(t *testing.T) {
	orig, err := os.Getwd()
	require.NoError(t, err)

	t.Run("inner", func(t *testing.T) {
		env := NewTestEnv(t)
		env.Chdir()

		wd, err := os.Getwd()
		require.NoError(t, err)
		resolvedRoot, err := filepath.EvalSymlinks(env.RootDir())
		require.NoError(t, err)
		resolvedWd, err := filepath.EvalSymlinks(wd)
		require.NoError(t, err)
		assert.Equal(t, resolvedRoot, resolvedWd)
	})

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, orig, wd)
}

func TestSetViperValueRestoresPrevious(t *testing.T) {
	ResetViper(t)
	viper.Set("database.dsn", "original.db")

	t.Run("override", func(t *testing.T) {
		SetViperValue(t, "database.dsn", "override.db")
		assert.Equal(t, "override.db", viper.GetString("database.dsn"))
	})

	assert.Equal(t, "original.db", viper.GetString("database.dsn"))
}

func TestGoldenHelperJSON(t *testing.T) {
	env := NewTestEnv(t)
	env.WriteFile("golden/sample.json", []byte("{\n  \"a\": 1,\n  \"b\": [1, 2]\n}\n"))

	t.Setenv("UPDATE_GOLDEN", "")
	g := NewGoldenHelper(t, env.Path("golden"))

	g.AssertGoldenJSON("sample.json", []byte(`{"b":[1,2],"a":1}`))
	g.AssertGolden("sample.json", g.MustRead("sample.json"))
}
