package main

import "github.com/training-hub/training-hub/internal/cli"

func main() {
	cli.Execute()
}
