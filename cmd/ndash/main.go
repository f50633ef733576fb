package main

import "github.com/mcoot/neurodash/internal/cli"

func main() {
	cli.Execute()
}
