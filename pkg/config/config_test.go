package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadWith(filepath.Join(dir, "absent.yaml"), env(map[string]string{}))
	require.NoError(t, err)

	want := Default()
	// The default .env.local is relative to the working directory.
	want.APIKey = cfg.APIKey
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thirukkural.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
data: /srv/kural.json
models: [gemini-2.0-flash]
request_timeout: 15s
env_file: ""
`), 0o644))

	cfg, err := LoadWith(path, env(map[string]string{
		"THIRUKKURAL_DB":     "/tmp/k.db",
		"GEMINI_API_KEY":     "from-env",
		"THIRUKKURAL_MODELS": "a, b ,",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/srv/kural.json", cfg.DataPath)
	assert.Equal(t, "/tmp/k.db", cfg.DBPath)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, []string{"a", "b"}, cfg.Models)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestPortAndAddrPrecedence(t *testing.T) {
	cfg, err := LoadWith("", env(map[string]string{"PORT": "3000", "THIRUKKURAL_ENV_UNUSED": "x"}))
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Addr)

	cfg, err = LoadWith("", env(map[string]string{"PORT": "3000", "THIRUKKURAL_ADDR": "127.0.0.1:4000"}))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4000", cfg.Addr)
}

func TestAPIKeyFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")
	require.NoError(t, os.WriteFile(envFile, []byte("# local secrets\nOTHER=1\nexport GEMINI_API_KEY=\"abc123\"\n"), 0o600))
	cfgFile := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("env_file: "+envFile+"\n"), 0o644))

	cfg, err := LoadWith(cfgFile, env(map[string]string{}))
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.APIKey)

	// The environment wins over the file.
	cfg, err = LoadWith(cfgFile, env(map[string]string{"GEMINI_API_KEY": "env"}))
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.APIKey)
}

func TestInvalidSettings(t *testing.T) {
	_, err := LoadWith("", env(map[string]string{"THIRUKKURAL_WORKERS": "many"}))
	assert.Error(t, err)

	_, err = LoadWith("", env(map[string]string{"THIRUKKURAL_WORKERS": "0"}))
	assert.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("addr: [unclosed"), 0o644))
	_, err = LoadWith(bad, env(map[string]string{}))
	assert.Error(t, err)
}

func TestReadEnvFileMissing(t *testing.T) {
	v, err := ReadEnvFile(filepath.Join(t.TempDir(), "nope"), "GEMINI_API_KEY")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestReadEnvFileFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.local")
	content := "# comment\n" +
		"export GEMINI_API_KEY=\"with # hash\"\n" +
		"SINGLE='quoted value'\n" +
		"PLAIN=bare # trailing note\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	for key, want := range map[string]string{
		"GEMINI_API_KEY": "with # hash",
		"SINGLE":         "quoted value",
		"PLAIN":          "bare",
		"ABSENT":         "",
	} {
		got, err := ReadEnvFile(path, key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}
