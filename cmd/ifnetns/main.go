package main

import (
	"errors"
	"os"

	"github.com/ifnetns/ifnetns/cli"
	"github.com/ifnetns/ifnetns/log"
)

func main() {
	defer log.Sync()

	if err := cli.NewRootCommand().Execute(); err != nil {
		var statusErr *cli.ExitStatusError
		if !errors.As(err, &statusErr) {
			log.Errorf("%v", err)
		}
		log.Sync()
		os.Exit(cli.ExitCode(err))
	}
}
