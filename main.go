package main

import "github.com/KaramelBytes/tidyloom-cli/cmd"

func main() {
	cmd.Execute()
}
