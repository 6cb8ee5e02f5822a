package main

import "github.com/chatterbox-vr/chatterbox/cmd/chatterbox/cmd"

func main() {
	cmd.Execute()
}
