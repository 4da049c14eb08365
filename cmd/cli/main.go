package main

import (
	"github.com/mchmarny/xray/pkg/cli"
)

func main() {
	cli.Execute()
}
