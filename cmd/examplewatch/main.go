// examplewatch rebuilds and relaunches a native example whenever its sources change.
package main

import (
	"os"

	"github.com/hupe1980/examplewatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
