package main

import (
	cmd "github.com/kerbaras/mangodl/cmd/mangodl"
)

func main() {
	cmd.Execute()
}
