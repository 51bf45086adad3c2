package protocol

import (
	"fmt"
	"strings"

	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
)

// CheckVersion verifies that an incoming envelope version is compatible with
// the supported protocol version. Compatibility is judged on the major
// component only; minor and patch differences pass.
func CheckVersion(got string) error {
	if got == "" {
		return mcperrors.ValidationFailed("envelope version is empty")
	}
	gotMajor, ok := major(got)
	if !ok {
		return mcperrors.VersionMismatch(got, Version)
	}
	wantMajor, _ := major(Version)
	if gotMajor != wantMajor {
		return mcperrors.VersionMismatch(got, Version)
	}
	return nil
}

// major extracts the major component of a semantic version string.
func major(version string) (string, bool) {
	m, _, _ := strings.Cut(version, ".")
	if m == "" {
		return "", false
	}
	for _, r := range m {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return m, true
}

func blockPath(i int) string {
	return fmt.Sprintf("payload[%d]", i)
}

func itemCountMismatch(declared, actual int) string {
	return fmt.Sprintf("item_count %d does not match %d items", declared, actual)
}
