package main

import "github.com/ogulcanaydogan/ImageGen-Guardian/internal/cli"

func main() {
	cli.Execute()
}
