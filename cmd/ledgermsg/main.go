// Command ledgermsg operates a messaging ledger: key management, signed
// transactions, inspection, verification, replay and the HTTP API.
package main

import (
	"os"

	"github.com/roach88/ledgermsg/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
