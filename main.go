package main

import "ctxtree/cmd"

func main() {
	cmd.Execute()
}
