package main

import "github.com/KunlingLio/project-timer/cmd"

func main() {
	cmd.Execute()
}
