package main

import "github.com/ngld/relkit/cmd"

func main() {
	cmd.Execute()
}
