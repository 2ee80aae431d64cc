package main

import "fmt"

//go:noinline
func marker() int { return 42 }

func main() {
	fmt.Println(marker())
}
