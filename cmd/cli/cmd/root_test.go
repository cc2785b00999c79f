package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// resetViper clears viper config between tests for isolation
func resetViper() {
	viper.Reset()
	viper.SetEnvPrefix("SPECPLANE")
	viper.AutomaticEnv()
	cfgFile = ""
}

func TestRootCommand_Help(t *testing.T) {
	resetViper()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"--help"})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	for _, cmd := range []string{"plan", "submit", "status", "nights", "failed"} {
		if !strings.Contains(output, cmd) {
			t.Errorf("expected help to list %q command, got:\n%s", cmd, output)
		}
	}
}
