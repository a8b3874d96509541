package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"os"

	fx "github.com/robotalks/sniff.go/pkg/framework"
	"github.com/robotalks/sniff.go/pkg/env"
	"github.com/robotalks/sniff.go/pkg/port"
)

var listPorts bool

func init() {
	env.SetupFlags()
	flag.BoolVar(&listPorts, "list", listPorts, "List serial ports and exit.")
}

func main() {
	flag.Parse()

	if listPorts {
		ports, err := port.List()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, name := range ports {
			fmt.Println(name)
		}
		return
	}

	e := env.NewConfig().MustNewEnv()
	fx.NewLoop().Add(e).RunOrFail()
}
