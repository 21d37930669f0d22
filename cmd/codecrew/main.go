package main

import "github.com/codecrew-ai/codecrew/internal/cli"

func main() {
	cli.Execute()
}
