package main

import "github.com/kallstrom/embermqtt/cmd"

func main() {
	cmd.Execute()
}
