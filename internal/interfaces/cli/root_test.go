package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "lightmap", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

func TestNewRootCommand_SubcommandRegistration(t *testing.T) {
	cmd := NewRootCommand()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[strings.Fields(sub.Use)[0]] = true
	}

	for _, want := range []string{"resolve", "dictionary", "coverage"} {
		assert.Truef(t, names[want], "subcommand %q not registered", want)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	pf := cmd.PersistentFlags()

	for _, name := range []string{"config", "log-level", "output", "verbose", "no-color", "timeout"} {
		assert.NotNilf(t, pf.Lookup(name), "flag %q not registered", name)
	}

	assert.Equal(t, "text", pf.Lookup("output").DefValue)
	assert.Equal(t, "info", pf.Lookup("log-level").DefValue)
}

func TestGetCLIContext_NotInitialized(t *testing.T) {
	cmd := &cobra.Command{Use: "bare"}
	cmd.SetContext(context.Background())

	_, err := GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestPersistentPreRun_BuildsContext(t *testing.T) {
	cmd := &cobra.Command{Use: "probe"}
	cmd.SetContext(context.Background())

	opts := &RootOptions{LogLevel: "warn", OutputFormat: "json"}
	require.NoError(t, persistentPreRun(cmd, opts))

	cliCtx, err := GetCLIContext(cmd)
	require.NoError(t, err)
	require.NotNil(t, cliCtx.Config)
	require.NotNil(t, cliCtx.Logger)
	assert.Equal(t, "json", cliCtx.OutputFormat)
}

func TestPrintResult_JSONFallbackWithoutContext(t *testing.T) {
	cmd := &cobra.Command{Use: "bare"}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, PrintResult(cmd, map[string]string{"status": "ok"}))
	assert.Contains(t, out.String(), `"status": "ok"`)
}

func TestFormatTable_AlignsColumns(t *testing.T) {
	out := FormatTable(
		[]string{"NAME", "SCORE"},
		[][]string{
			{"Mega Tree", "0.95"},
			{"Arch", "0.80"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "NAME       SCORE", lines[0])
	assert.Equal(t, "---------  -----", lines[1])
	assert.Equal(t, "Mega Tree  0.95 ", lines[2])
	assert.Equal(t, "Arch       0.80 ", lines[3])
}

func TestFormatTable_EmptyHeaders(t *testing.T) {
	assert.Empty(t, FormatTable(nil, [][]string{{"a"}}))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}
