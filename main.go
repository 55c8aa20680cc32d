package main

import "github.com/aceteam-ai/guardian/cmd"

func main() {
	cmd.Execute()
}
