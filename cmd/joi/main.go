// joi runs linters and tests whenever project files change.
package main

import (
	"os"

	"github.com/hupe1980/joi/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
