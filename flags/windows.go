//go:build windows

package flags

import (
	"os"
	"path/filepath"
)

// defaultMountpoint is where a magma filesystem is exposed if -mountpoint
// is not given explicitly.
var defaultMountpoint = filepath.Join(os.Getenv("USERPROFILE"), "magma")
