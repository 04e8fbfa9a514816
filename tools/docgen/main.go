// Package main writes the discount-notifier CLI reference as markdown.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/donaldgifford/discount-notifier/cmd/discount-notifier/cmd"
)

func main() {
	output := flag.String("output", "docs/cli", "directory for the generated pages")
	flag.Parse()

	if err := os.MkdirAll(*output, 0o750); err != nil {
		log.Fatalf("creating %s: %v", *output, err)
	}

	root := cmd.Root()
	root.DisableAutoGenTag = true

	if err := doc.GenMarkdownTree(root, *output); err != nil {
		log.Fatalf("generating CLI reference: %v", err)
	}

	fmt.Printf("wrote %d command pages to %s/\n", countCommands(root), *output)
}

func countCommands(c *cobra.Command) int {
	n := 1
	for _, sub := range c.Commands() {
		if !sub.IsAvailableCommand() || sub.IsAdditionalHelpTopicCommand() {
			continue
		}
		n += countCommands(sub)
	}
	return n
}
