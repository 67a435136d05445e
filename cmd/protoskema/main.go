// Command protoskema converts between protobuf binary and JSON using .proto
// files loaded at run time.
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
