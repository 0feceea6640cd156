package testsupport

import (
	"os"
	"testing"
)

// ShortSocketDir returns a fresh directory under the system temp root.
// t.TempDir paths embed the test name and can exceed the unix socket path
// limit.
func ShortSocketDir(t testing.TB) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "a2a")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}
