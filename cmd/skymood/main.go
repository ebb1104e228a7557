package main

import (
	"github.com/Paintersrp/skymood/internal/cli"
	"github.com/Paintersrp/skymood/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
