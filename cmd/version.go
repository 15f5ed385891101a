package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"
)

func versionCmd(*cli.Context) error {
	printVersion(os.Stdout)
	return nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Version:      %s\n", version)
	fmt.Fprintf(w, "Git revision: %s\n", commit)
	fmt.Fprintf(w, "Build date:   %s\n", date)
	fmt.Fprintf(w, "Go version:   %s\n", runtime.Version())
	fmt.Fprintf(w, "OS/Arch:      %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
