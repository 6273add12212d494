package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"guesser/failure"
)

// Version identifies one snapshot of a theme, written major.minor or major.minor.micro.
type Version struct {
	Major    int
	Minor    int
	Micro    int
	HasMicro bool
}

// ParseVersion parses "1.0" or "1.0.2". Parts must be non-negative integers and not all zero.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 2 && len(parts) != 3 {
		return Version{}, failure.Configuration("version %q: expected 2 or 3 parts", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, failure.Configuration("version %q: part %q is not an integer", s, p)
		}
		if n < 0 {
			return Version{}, failure.Configuration("version %q: negative part", s)
		}
		nums[i] = n
	}

	v := Version{Major: nums[0], Minor: nums[1]}
	if len(nums) == 3 {
		v.Micro = nums[2]
		v.HasMicro = true
	}
	if v.IsZero() {
		return Version{}, failure.Configuration("version %q: all parts are zero", s)
	}
	return v, nil
}

// MustParseVersion is ParseVersion for literals; it panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is the zero version, which callers use to mean "latest".
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Micro == 0
}

func (v Version) String() string {
	if v.HasMicro {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0 or 1. A missing micro part compares as 0.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	default:
		return sign(v.Micro - other.Micro)
	}
}

func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
