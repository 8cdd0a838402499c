package main

import (
	"merchant-metrics-pipeline/internal/cli"
)

func main() {
	cli.Execute()
}
