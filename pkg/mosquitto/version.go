package mosquitto

import (
	"fmt"

	"github.com/hsiuhsiu/mosquitto-go/internal/bindings"
)

var (
	Version         = "v0.0.0-in-progress"
	UpstreamVersion = "unknown"
)

// WrapperVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func WrapperVersion() string {
	return Version
}

// BuiltAgainst returns the libmosquitto release the wrapper was built and
// tested against, set via ldflags alongside Version. It may differ from the
// library linked at run time, see LibraryVersion.
func BuiltAgainst() string {
	return UpstreamVersion
}

// LibVersion is the libmosquitto version triple.
type LibVersion struct {
	Major    int
	Minor    int
	Revision int
}

func (v LibVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Revision)
}

// LibraryVersion reports the version of the linked libmosquitto. It returns
// ErrNotBuilt when the bindings are not compiled in.
func LibraryVersion() (LibVersion, error) {
	lib, err := bindings.Default()
	if err != nil {
		return LibVersion{}, err
	}
	major, minor, revision := lib.LibVersion()
	return LibVersion{Major: major, Minor: minor, Revision: revision}, nil
}
