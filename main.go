// The main package for the comune-extractor executable.
package main

import (
	"github.com/opencivica/comune-extractor/cmd"
)

func main() {
	cmd.Execute()
}
