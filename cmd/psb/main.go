// Command psb builds and explores THERMOCALC pseudosections.
package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/petrolab/psb/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
