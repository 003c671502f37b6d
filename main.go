// The main package for the imageingest executable.
package main

import "github.com/catalogops/imageingest/cmd"

func main() {
	cmd.Execute()
}
