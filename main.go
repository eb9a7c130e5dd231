package main

import "github.com/nextlevelbuilder/livectl/cmd"

func main() {
	cmd.Execute()
}
