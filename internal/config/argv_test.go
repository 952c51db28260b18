package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	t.Setenv("PARLEY_SINK", "alsa_output.usb")
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "simple", input: "mpv --no-video", want: []string{"mpv", "--no-video"}},
		{name: "quoted spaces", input: `mycmd --name "hello world"`, want: []string{"mycmd", "--name", "hello world"}},
		{name: "single quote", input: `mycmd --name 'hello world'`, want: []string{"mycmd", "--name", "hello world"}},
		{name: "escaped space", input: `mycmd hello\ world`, want: []string{"mycmd", "hello world"}},
		{name: "empty quotes keep an argument", input: `mycmd ""`, want: []string{"mycmd", ""}},
		{name: "expands variables", input: `mpv --audio-device=pulse/$PARLEY_SINK`, want: []string{"mpv", "--audio-device=pulse/alsa_output.usb"}},
		{name: "expands inside double quotes", input: `mycmd "${PARLEY_SINK} out"`, want: []string{"mycmd", "alsa_output.usb out"}},
		{name: "single quotes stay literal", input: `mycmd '$PARLEY_SINK'`, want: []string{"mycmd", "$PARLEY_SINK"}},
		{name: "escaped dollar stays literal", input: `mycmd \$PARLEY_SINK`, want: []string{"mycmd", "$PARLEY_SINK"}},
		{name: "leading comment", input: `# mpv --no-video`, want: nil},
		{name: "unterminated quote", input: `mycmd "oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `mycmd hello\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMustParseArgvPanicsOnInvalidInput(t *testing.T) {
	require.Panics(t, func() {
		_ = mustParseArgv(`mycmd "unterminated`)
	})
}
