package main

import "github.com/oshokin/script-bundler/cmd/script-bundler/cmd"

func main() {
	cmd.Execute()
}
