package main

import "github.com/futarchy-labs/futarchyd/internal/cli"

func main() {
	cli.Execute()
}
