package main

import "github.com/lepinkainen/bookhaven/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
