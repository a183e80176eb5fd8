package main

import "taskbroker/cmd"

func main() {
	cmd.Run()
}
