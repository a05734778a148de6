package main

import "github.com/callummance/rolebot/cmd"

func main() {
	cmd.Execute()
}
