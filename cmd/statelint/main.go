// Command statelint checks that shared service types keep per-call state out
// of instance fields.
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"docsend/internal/lint/svcstate"
)

func main() {
	singlechecker.Main(svcstate.Analyzer)
}
