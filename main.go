package main

import "github.com/andresmejia3/fitlab/cmd"

func main() {
	cmd.Execute()
}
