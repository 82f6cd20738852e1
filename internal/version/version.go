// Package version records the build version. The release pipeline
// overrides Version with -ldflags "-X .../internal/version.Version=...".
package version

import (
	"fmt"
	"io"
	"runtime"
)

var Version = "dev"

func Fprint(w io.Writer) {
	fmt.Fprintf(w, "kubefm version %s\n", Version)
	fmt.Fprintf(w, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
