package compileinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	c := CompileInfo{
		Package:   "github.com/carbocation/polygenic/cmd/ldpred2",
		Version:   "(devel)",
		GoVersion: "go1.18",
		Commit:    "abc123",
		Modified:  true,
		Deps:      map[string]string{"gonum.org/v1/gonum": "v0.9.3"},
	}

	s := c.String()
	for _, want := range []string{"cmd/ldpred2", "abc123", "modified", "gonum.org/v1/gonum v0.9.3"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in %q", want, s)
		}
	}
}
