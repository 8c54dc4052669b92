package main

import "github.com/KaramelBytes/segloom-cli/cmd"

func main() {
	cmd.Execute()
}
