// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/pkg/jura"
	"github.com/Thermoquad/baristat/pkg/machinefile"
)

var (
	decodeKey     string
	decodeAs      string
	decodeMachine string
	encodeInstead bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode HEX",
	Short: "Decipher a captured payload offline",
	Long: `Decipher a payload copied from a Bluetooth trace.

Without --key the session key is recovered from the payload itself, which only
works for a machine status payload (the first byte carries the key).

--as selects how the deciphered bytes are interpreted:
  raw       deciphered bytes only
  status    active alert bits
  products  product counter record (3 byte fields)
  percent   maintenance percent record (1 byte fields)
  count     maintenance count record (2 byte fields)

With --machine the alerts, products and counters are labelled from a machine
file. Use --encode to encipher a command instead.

Examples:
  baristat decode "f9 dd 83" --as status
  baristat decode 2a0001ffff --key 5a --encode`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeKey, "key", "k", "", "Session key in hex (recovered when omitted)")
	decodeCmd.Flags().StringVar(&decodeAs, "as", "raw", "Interpretation (raw, status, products, percent, count)")
	decodeCmd.Flags().StringVarP(&decodeMachine, "machine", "m", "", "Machine file used for labels")
	decodeCmd.Flags().BoolVar(&encodeInstead, "encode", false, "Encipher instead of decipher")
}

func parseKey(s string) (jura.Key, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return jura.Key(v), nil
}

func loadMachineFile(path string) (*machinefile.Machine, error) {
	if path == "" {
		return &machinefile.Machine{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return machinefile.Parse(f)
}

// decodeInterpretations lists the accepted --as values
var decodeInterpretations = []string{"raw", "status", "products", "percent", "count"}

func runDecode(cmd *cobra.Command, args []string) error {
	if !slices.Contains(decodeInterpretations, decodeAs) {
		return fmt.Errorf("unknown interpretation %q (want one of %s)", decodeAs, strings.Join(decodeInterpretations, ", "))
	}

	payload, err := jura.ParseHex(args[0])
	if err != nil {
		return err
	}

	var key jura.Key
	if decodeKey != "" {
		if key, err = parseKey(decodeKey); err != nil {
			return err
		}
	} else {
		var trials int
		key, trials, err = jura.RecoverKeyTrials(payload)
		if err != nil {
			return err
		}
		fmt.Printf("Key:     %s (recovered after %d trials)\n", key, trials)
	}

	if encodeInstead {
		fmt.Printf("Encoded: %s\n", jura.FormatHex(jura.Encode(payload, key)))
		return nil
	}

	decoded := jura.Decode(payload, key)
	fmt.Printf("Decoded: %s\n", jura.FormatHex(decoded))

	machine, err := loadMachineFile(decodeMachine)
	if err != nil {
		return err
	}

	switch decodeAs {
	case "status":
		fmt.Println("Alerts:")
		if decodeMachine == "" {
			fmt.Printf("  active bits: %v\n", jura.ActiveBits(decoded))
			return nil
		}
		fmt.Print(jura.FormatAlerts(jura.ScanAlerts(decoded, machine.Alerts, unknownPolicy())))
		return nil
	case "products":
		return printRecord(decoded, jura.WidthProduct, func(r jura.Record) {
			fmt.Print(jura.FormatProducts(r.Total(), jura.CorrelateProducts(r, machine.Products)))
		})
	case "percent":
		return printRecord(decoded, jura.WidthPercent, func(r jura.Record) {
			fmt.Print(jura.FormatCounters(jura.CorrelateCounters(r, machine.CleaningPercent), "%"))
		})
	case "count":
		return printRecord(decoded, jura.WidthCount, func(r jura.Record) {
			fmt.Print(jura.FormatCounters(jura.CorrelateCounters(r, machine.CleaningCount), ""))
		})
	}
	return nil
}

func printRecord(decoded []byte, width jura.FieldWidth, labelled func(jura.Record)) error {
	record, err := jura.Reassemble(decoded, width)
	if err != nil {
		return err
	}
	fmt.Printf("Fields:  %v\n", []uint32(record))
	if decodeMachine != "" {
		labelled(record)
	}
	return nil
}
