package main

import "unirag/internal/cli"

func main() {
	cli.Execute()
}
