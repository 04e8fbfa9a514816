// Package main is the entry point for discount-notifier.
package main

import (
	"os"

	"github.com/donaldgifford/discount-notifier/cmd/discount-notifier/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
