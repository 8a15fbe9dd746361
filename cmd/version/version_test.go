package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommandOutput(t *testing.T) {
	buf := new(bytes.Buffer)
	VersionCmd.SetOut(buf)

	if err := VersionCmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	output := buf.String()
	for _, label := range []string{"Version:", "Git Commit:", "Build Date:"} {
		if !strings.Contains(output, label) {
			t.Errorf("version output missing label %q", label)
		}
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Errorf("version output has %d lines, expected 3", len(lines))
	}
}
