package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/msavelyev/calhub/internal/vaultctl"
)

func main() {
	var opts vaultctl.Options

	fs := flag.NewFlagSet("vaultctl", flag.ExitOnError)
	fs.StringVar(&opts.ServerURL, "s", "http://localhost:8080", "daemon base URL")
	fs.StringVar(&opts.Token, "t", os.Getenv("CALHUB_TOKEN"), "API token")
	fs.StringVar(&opts.Provider, "p", "", "provider key (set-item)")
	fs.StringVar(&opts.CredsFile, "f", "", "credentials JSON file (set-item)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: vaultctl [flags] unlock|set-item")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	app := vaultctl.NewApp(opts)
	if err := app.Run(context.Background(), fs.Arg(0)); err != nil {
		log.Fatalf("%v", err)
	}
}
