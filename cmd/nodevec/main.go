// Command nodevec trains order-1 node embeddings on an edge list and
// inspects the resulting model files.
package main

import (
	"os"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		logger.Error("nodevec failed", "error", err)
		os.Exit(1)
	}
}
