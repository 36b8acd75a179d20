// Package compileinfo reports which commit and toolchain built a binary, so
// that scores written by it can be traced back to the code.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

type CompileInfo struct {
	Package    string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool

	// Versions of the numerical dependencies, which can change results
	Deps map[string]string
}

// tracked are the modules whose versions are reported.
var tracked = map[string]bool{
	"gonum.org/v1/gonum":                     true,
	"golang.org/x/exp":                       true,
	"github.com/carbocation/bgen":            true,
	"github.com/kshedden/statmodel":          true,
	"github.com/montanaflynn/stats":          true,
	"github.com/carbocation/runningvariance": true,
}

func (c CompileInfo) String() string {
	mod := ""
	if c.Modified {
		mod = " Files in the repo were modified after that commit."
	}

	out := fmt.Sprintf("This %s (%s) binary was built with %s at commit %v at time %v.%s", c.Package, c.Version, c.GoVersion, c.Commit, c.CommitTime, mod)
	for path, version := range c.Deps {
		out += fmt.Sprintf("\n\t%s %s", path, version)
	}

	return out
}

func Get() CompileInfo {
	out := CompileInfo{Deps: make(map[string]string)}

	z, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = z.GoVersion
	out.Package = z.Path
	out.Version = z.Main.Version
	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}
	for _, dep := range z.Deps {
		if tracked[dep.Path] {
			out.Deps[dep.Path] = dep.Version
		}
	}

	return out
}

func PrintToStdErr() {
	z := Get()
	fmt.Fprintf(os.Stderr, "%s\n", z)
}
