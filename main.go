package main

import "github.com/denysvitali/foldgen/cmd"

func main() {
	cmd.Execute()
}
