package main

import "github.com/crystfel-go/crystfel-go/internal/cli"

func main() {
	cli.Execute()
}
