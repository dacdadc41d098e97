package main

import "github.com/oshokin/reqcheck/cmd/reqcheck/cmd"

func main() {
	cmd.Execute()
}
