package main

import "github.com/kozaktomas/clock-in/cmd"

func main() {
	cmd.Execute()
}
