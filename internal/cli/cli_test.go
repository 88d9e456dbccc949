package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with an isolated home and environment.
func runCLI(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MMASSIST_HOME", home)
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_API_BASE", "OPENAI_ASSISTANT_ID",
		"MATTERMOST_URL", "MATTERMOST_TOKEN", "MMASSIST_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent", "--env-file", filepath.Join(home, "missing.env")}, args...))
	err := cmd.Execute()
	cfgFile = ""
	return out.String(), err
}

func TestConfigSetThenValidate(t *testing.T) {
	home := t.TempDir()

	_, err := runCLI(t, home, "config", "set", "bridge.maxConcurrent", "3")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "maxConcurrent: 3")

	out, err := runCLI(t, home, "config", "validate", "--strict=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Config is valid")

	out, err = runCLI(t, home, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "openai.assistantId")
}

func TestConfigValidate_BadValue(t *testing.T) {
	home := t.TempDir()
	_, err := runCLI(t, home, "config", "set", "logging.level", "loud")
	require.NoError(t, err)

	out, err := runCLI(t, home, "config", "validate", "--strict=false")
	require.Error(t, err)
	assert.Contains(t, out, "logging.level")
}

func TestRun_MissingAssistantIDIsFatal(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required setting")
}

func TestEnvFileIsLoaded(t *testing.T) {
	home := t.TempDir()
	envPath := filepath.Join(home, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("MMASSIST_TEST_FROM_DOTENV=yes\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MMASSIST_TEST_FROM_DOTENV") })

	_, err := runCLI(t, home, "--env-file", envPath, "version")
	require.NoError(t, err)
	assert.Equal(t, "yes", os.Getenv("MMASSIST_TEST_FROM_DOTENV"))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 42, parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "asst_abc", parseValue("asst_abc"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(unset)", mask(""))
	assert.Equal(t, "****", mask("abcd"))
	assert.Equal(t, "****6789", mask("sk-123456789"))
}
