package main

import "github.com/audiolibrelab/headat/cmd"

func main() {
	cmd.Execute()
}
