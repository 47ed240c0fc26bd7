package conf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Duration
	}{
		{"string", `"30s"`, Duration(30 * time.Second)},
		{"compound", `"1h30m"`, Duration(90 * time.Minute)},
		{"nanoseconds", `60000000000`, Duration(time.Minute)},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Duration(time.Hour)
			require.NoError(t, json.Unmarshal([]byte(tt.input), &d))
			assert.Equal(t, tt.want, d)
		})
	}

	b, err := json.Marshal(struct {
		Tick Duration `json:"tick"`
	}{Duration(30 * time.Second)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":"30s"}`, string(b))
}

func TestDuration_JSONInvalid(t *testing.T) {
	t.Parallel()

	var d Duration
	require.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	require.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	type cfg struct {
		Retention Duration `yaml:"retention"`
	}

	var c cfg
	require.NoError(t, yaml.Unmarshal([]byte("retention: 2160h\n"), &c))
	assert.Equal(t, Duration(2160*time.Hour), c.Retention)

	out, err := yaml.Marshal(cfg{Retention: Duration(5 * time.Minute)})
	require.NoError(t, err)
	assert.Contains(t, string(out), "5m0s")

	require.Error(t, yaml.Unmarshal([]byte("retention: [1, 2]\n"), &c))
	require.Error(t, yaml.Unmarshal([]byte("retention: later\n"), &c))
}
