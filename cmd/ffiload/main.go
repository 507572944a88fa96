// Command ffiload loads FFI XML exports into a relational store.
//
//	ffiload run [file...]   import pending exports (or the named files)
//	ffiload check <file>    report the duplicate verdict of one export
//	ffiload serve           expose health, metrics and an import trigger over HTTP
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ffiload:", err)
		os.Exit(1)
	}
}
