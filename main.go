package main

import "github.com/user/arxiv-digest/cmd"

func main() {
	cmd.Execute()
}
