/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ponyo877/lounge/cli/cmd"

func main() {
	cmd.Execute()
}
