/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/ponyo877/lounge/server/domain"
)

func printMessage(w io.Writer, m domain.Message) {
	fmt.Fprintf(w, "[%s] %s\n", m.Timestamp.Local().Format("15:04:05"), m)
}
