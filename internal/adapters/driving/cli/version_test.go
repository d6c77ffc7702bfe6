package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd_Use(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
	assert.Equal(t, "true", versionCmd.Annotations[skipSetup])
}

func TestVersionCmd_Executes(t *testing.T) {
	for _, v := range []string{"dev", "1.4.0"} {
		t.Run(v, func(t *testing.T) {
			originalVersion := version
			version = v
			defer func() { version = originalVersion }()

			// No config file exists at this path; version must not need one.
			out, err := execute(t, "version", "--config", "/nonexistent/config.toml")
			require.NoError(t, err)
			assert.Contains(t, out, "sercha-digest version "+v)
		})
	}
}
