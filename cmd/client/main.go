package main

import "github.com/huddlekit/huddle/cmd/client/cmd"

func main() {
	cmd.Execute()
}
