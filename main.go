package main

import "stratlab-sync/internal/cli"

func main() {
	cli.Execute()
}
