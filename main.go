package main

import "github.com/scrapsama/scrapsama/cmd"

func main() {
	cmd.Execute()
}
