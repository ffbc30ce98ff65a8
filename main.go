package main

import "github.com/audiolibrelab/loopcap/cmd"

func main() {
	cmd.Execute()
}
