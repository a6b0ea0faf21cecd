package main

import "github.com/nextlevelbuilder/unlost/cmd"

func main() {
	cmd.Execute()
}
