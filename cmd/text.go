// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/pkg/jura"
)

var textCmd = &cobra.Command{
	Use:   "text",
	Short: "Service UART character codec helpers",
	Long: `Convert between text and the four byte wire form used on the service UART.

Every character is spread over four bytes carrying two payload bits each.`,
}

var textEncodeCmd = &cobra.Command{
	Use:   "encode TEXT",
	Short: "Print the wire bytes of each character",
	Example: `  baristat text encode AN:0A
  baristat text encode --crlf TY:`,
	Args: cobra.ExactArgs(1),
	RunE: runTextEncode,
}

var textDecodeCmd = &cobra.Command{
	Use:   "decode HEX [HEX...]",
	Short: "Decode wire bytes back to text",
	Long: `Decode wire bytes back to text.

A single argument is read as a byte stream. Several arguments are read as one
character each, in the form printed by "text encode".`,
	Example: `  baristat text decode "5f 5b 5b 5f 5b 5f 5f 5f"
  baristat text decode "5f 5b 5b 5f" "5b 5f 5f 5f"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTextDecode,
}

var appendCRLF bool

func init() {
	rootCmd.AddCommand(textCmd)
	textCmd.AddCommand(textEncodeCmd, textDecodeCmd)
	textEncodeCmd.Flags().BoolVar(&appendCRLF, "crlf", false, "Terminate the text with CR LF")
}

func runTextEncode(cmd *cobra.Command, args []string) error {
	text := args[0]
	if appendCRLF {
		text += "\r\n"
	}
	for i := 0; i < len(text); i++ {
		fmt.Printf("%-4s %s\n", printable(text[i]), jura.FormatWireHex(jura.EncodeByte(text[i])))
	}
	return nil
}

func runTextDecode(cmd *cobra.Command, args []string) error {
	text, err := decodeTextArgs(args)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(text, "\r\n"))
	return nil
}

func decodeTextArgs(args []string) (string, error) {
	if len(args) == 1 {
		data, err := jura.ParseHex(args[0])
		if err != nil {
			return "", err
		}
		return jura.DecodeText(data)
	}

	var sb strings.Builder
	for i, arg := range args {
		w, err := jura.ParseWireHex(arg)
		if err != nil {
			return "", fmt.Errorf("character %d: %w", i+1, err)
		}
		if !w.Valid() {
			return "", fmt.Errorf("character %d: %s does not match the wire template", i+1, arg)
		}
		c, err := jura.DecodeChar(w.Bytes())
		if err != nil {
			return "", fmt.Errorf("character %d: %w", i+1, err)
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

func printable(c byte) string {
	switch {
	case c == '\r':
		return `\r`
	case c == '\n':
		return `\n`
	case c < 0x20 || c > 0x7e:
		return fmt.Sprintf("\\x%02x", c)
	}
	return string(c)
}
