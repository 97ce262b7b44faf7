// The main package for the searchengine executable.
package main

import (
	"github.com/ozemskikh/SearchEngine/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
