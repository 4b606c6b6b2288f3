package main

import "github.com/clipforge/engine/internal/cli"

func main() {
	cli.Main()
}
