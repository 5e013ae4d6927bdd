// Package main is the entry point for the retrohunt CLI.
package main

import "retrohunt/cmd"

func main() {
	cmd.Execute()
}
