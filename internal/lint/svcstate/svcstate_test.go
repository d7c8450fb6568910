package svcstate_test

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"

	"docsend/internal/lint/svcstate"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, svcstate.Analyzer, "a")
}
