package main

import "github.com/vietddude/dbwatch/internal/cli"

func main() {
	cli.Execute()
}
