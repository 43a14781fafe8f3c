package main

import "os"

func main() {
	runRequest(os.Stdin, os.Stdout)
}
