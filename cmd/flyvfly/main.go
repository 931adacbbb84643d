package main

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/Noofbiz/flyvfly/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()
	err := rootCmd.Execute()
	klog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
