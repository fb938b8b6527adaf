package main

import "github.com/iksnae/cs-assist/cmd"

func main() {
	cmd.Execute()
}
