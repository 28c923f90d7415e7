package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name   string `json:"name"`
	Port   int    `json:"port"`
	Nested struct {
		File string `json:"file"`
	} `json:"nested"`
}

func write(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "app.json5")

	_, err := ReadConfig[testConfig](name)
	require.ErrorIs(t, err, os.ErrNotExist)

	write(t, name, `{
		// comments and trailing commas are fine
		name: "base",
		port: 8080,
		nested: { file: "data.db" },
	}`)
	config, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "base", config.Name)
	require.Equal(t, 8080, config.Port)

	write(t, filepath.Join(dir, "app.local.json5"), `{ port: 9090 }`)
	config, err = ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "base", config.Name)
	require.Equal(t, 9090, config.Port)
	require.Equal(t, "data.db", config.Nested.File)
}

func TestReadConfigInvalid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "app.json5")
	write(t, name, `{ name: `)
	_, err := ReadConfig[testConfig](name)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestReadWithDefaults(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "app.json5")
	defaults := testConfig{Name: "default", Port: 5000}

	config, err := ReadWithDefaults(name, defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, config)

	write(t, name, `{ name: "custom" }`)
	config, err = ReadWithDefaults(name, defaults)
	require.NoError(t, err)
	require.Equal(t, "custom", config.Name)
	require.Equal(t, 5000, config.Port)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	write(t, filepath.Join(root, "found.json5"), `{ name: "top" }`)

	t.Chdir(nested)
	config, err := ReadRecursively[testConfig]("found.json5")
	require.NoError(t, err)
	require.Equal(t, "top", config.Name)

	_, err = ReadRecursively[testConfig]("missing-visabulletin-test.json5")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	write(t, path, "VISABULLETIN_TEST_SECRET=hunter2\n")
	t.Setenv("VISABULLETIN_TEST_SECRET", "")
	os.Unsetenv("VISABULLETIN_TEST_SECRET")

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), path))

	value := "from file"
	Override(&value, "VISABULLETIN_TEST_SECRET")
	require.Equal(t, "hunter2", value)

	Override(&value, "VISABULLETIN_TEST_UNSET")
	require.Equal(t, "hunter2", value)
}
