package main

import "github.com/tanq16/minicurl/cmd"

func main() {
	cmd.Execute()
}
