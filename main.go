package main

import "github.com/papapumpkin/metwrap/cmd"

func main() {
	cmd.Execute()
}
