package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveParams_CreatesNewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".orbitctl.yaml")

	err := SaveParams(configPath, ParamsConfig{OrbitalSpeed: "3.5", Altitude: "420"})
	require.NoError(t, err)

	_, err = os.Stat(configPath)
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `orbital_speed: "3.5"`)
	assert.Contains(t, string(data), `altitude: "420"`)
}

func TestSaveParams_PreservesOtherConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".orbitctl.yaml")

	initial := `# orbitctl config
simulation:
  exec_path: /usr/local/bin/orbitsim  # the good build
channel:
  path: /tmp/data_socket
ui:
  show_status_bar: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o644))

	err := SaveParams(configPath, ParamsConfig{OrbitalSpeed: "7", Altitude: "99"})
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "exec_path: /usr/local/bin/orbitsim")
	assert.Contains(t, content, "# the good build", "comments must survive the rewrite")
	assert.Contains(t, content, "path: /tmp/data_socket")
	assert.Contains(t, content, "show_status_bar: false")
	assert.Contains(t, content, `orbital_speed: "7"`)
}

func TestSaveParams_ReplacesExisting(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".orbitctl.yaml")

	require.NoError(t, SaveParams(configPath, ParamsConfig{OrbitalSpeed: "1", Altitude: "2"}))
	require.NoError(t, SaveParams(configPath, ParamsConfig{OrbitalSpeed: "8", Altitude: "9"}))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, `orbital_speed: "8"`)
	assert.NotContains(t, content, `orbital_speed: "1"`)
	assert.Equal(t, 1, strings.Count(content, "params:"), "params section must not duplicate")
}

func TestSaveParams_Roundtrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".orbitctl.yaml")

	original := ParamsConfig{OrbitalSpeed: "-3.5", Altitude: "1e4"}
	require.NoError(t, SaveParams(configPath, original))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	var loaded ParamsConfig
	require.NoError(t, v.UnmarshalKey("params", &loaded))
	assert.Equal(t, original, loaded)
}

func TestSaveSimExecPath_CreatesSection(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".orbitctl.yaml")

	initial := "ui:\n  vim_mode: true\n"
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o644))

	err := SaveSimExecPath(configPath, "/opt/orbitsim/bin/orbitsim")
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "simulation:")
	assert.Contains(t, content, "exec_path: /opt/orbitsim/bin/orbitsim")
	assert.Contains(t, content, "vim_mode: true")
}

func TestSaveSimExecPath_UpdatesInPlace(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".orbitctl.yaml")

	initial := `simulation:
  exec_path: /old/orbitsim
  handshake_timeout: 30s
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o644))

	err := SaveSimExecPath(configPath, "/new/orbitsim")
	require.NoError(t, err)

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	var sim SimulationConfig
	require.NoError(t, v.UnmarshalKey("simulation", &sim))
	assert.Equal(t, "/new/orbitsim", sim.ExecPath)
	assert.Equal(t, "30s", sim.HandshakeTimeout.String(), "sibling keys must survive")
}

func TestSaveSimExecPath_EmptyFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".orbitctl.yaml")

	require.NoError(t, SaveSimExecPath(configPath, "/usr/local/bin/orbitsim"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "exec_path: /usr/local/bin/orbitsim")
}

func TestDefaultConfigTemplate_ParsesWithViper(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(DefaultConfigTemplate())))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, "/tmp/data_socket", cfg.Channel.Path)
	assert.Equal(t, "2", cfg.Params.OrbitalSpeed)
	assert.Equal(t, 600, cfg.Surface.Width)
}

func TestWriteDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", ".orbitctl.yaml")

	require.NoError(t, WriteDefaultConfig(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigTemplate(), string(data))
}
