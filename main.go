package main

import "floatfetch/internal/cli"

func main() {
	cli.Execute()
}
