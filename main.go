package main

import "stampede/cmd"

func main() {
	cmd.Execute()
}
