package version

import "testing"

func TestString(t *testing.T) {
	origVersion, origSHA, origTime := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = origVersion, origSHA, origTime }()

	Version, GitSHA, BuildTime = "1.2.3", "abc123", "2025-06-01"
	if got, want := String(), "sensorlink 1.2.3 (abc123, built 2025-06-01)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
