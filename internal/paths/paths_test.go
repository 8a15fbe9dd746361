package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolvePersistentKindCreatesDirectory(t *testing.T) {
	base := t.TempDir()
	// The temp-dir safety check applies to persistent kinds, so point the
	// development base at a directory outside os.TempDir for this test.
	r := NewResolver(WithMode(ModeSelfHosted), WithSelfHostedBase(nonTempBase(t, base)))

	got, err := r.Resolve("acme", KindTabularRoot)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	info, err := os.Stat(got)
	if err != nil {
		t.Fatalf("resolved path not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("resolved path is not a directory: %s", got)
	}
	if !strings.Contains(got, "acme") {
		t.Errorf("resolved path missing customer segment: %s", got)
	}
	if !strings.HasSuffix(got, string(KindTabularRoot)) {
		t.Errorf("resolved path missing kind segment: %s", got)
	}
}

func TestResolveScratchIsTempAndUnique(t *testing.T) {
	r := NewResolver(WithMode(ModeDevelopment))

	a, err := r.Resolve("acme", KindEphemeralScratch)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	defer os.RemoveAll(a)

	b, err := r.Resolve("acme", KindEphemeralScratch)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	defer os.RemoveAll(b)

	if a == b {
		t.Errorf("scratch dirs not unique: %s", a)
	}
	if !underTempDir(a) {
		t.Errorf("scratch dir %s not under temp dir", a)
	}
}

func TestResolveRejectsTempForPersistentKinds(t *testing.T) {
	r := NewResolver(WithMode(ModeSelfHosted), WithSelfHostedBase(os.TempDir()))

	defer func() {
		if recover() == nil {
			t.Error("expected panic for persistent path under temp dir")
		}
	}()
	_, _ = r.Resolve("acme", KindVectorRoot)
}

func TestResolveEmptyCustomer(t *testing.T) {
	r := NewResolver(WithMode(ModeDevelopment))
	if _, err := r.Resolve("", KindTabularRoot); err == nil {
		t.Error("expected error for empty customer id")
	}
}

func TestSanitizeStripsTraversal(t *testing.T) {
	got := sanitize("../evil/../../etc")
	if strings.Contains(got, "..") || strings.Contains(got, string(os.PathSeparator)) {
		t.Errorf("sanitize left traversal components: %q", got)
	}
}

func TestModeDetectionHonorsEnv(t *testing.T) {
	t.Setenv("DEPLOYMENT_TYPE", "self_hosted")
	if got := detectMode(); got != ModeSelfHosted {
		t.Errorf("detectMode() = %v, want %v", got, ModeSelfHosted)
	}
}

// nonTempBase returns a base outside os.TempDir. When the test temp dir is
// already outside (common on CI), it is used directly; otherwise the test
// falls back to a directory in the working tree that is cleaned up.
func nonTempBase(t *testing.T, candidate string) string {
	t.Helper()
	if !underTempDir(candidate) {
		return candidate
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	base := filepath.Join(wd, "testdata-resolver")
	t.Cleanup(func() { os.RemoveAll(base) })
	return base
}
