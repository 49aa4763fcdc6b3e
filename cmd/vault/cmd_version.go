package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
)

// Set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func runVersion(_ context.Context, args []string) {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault version

Print version information.
`)
	}
	_ = fs.Parse(args)

	fmt.Println(versionString())
}

func versionString() string {
	return fmt.Sprintf("vault %s (%s, %s, %s/%s)", version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
