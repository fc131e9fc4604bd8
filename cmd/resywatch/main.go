package main

import "github.com/example/resywatch/cmd"

func main() {
	cmd.Execute()
}
