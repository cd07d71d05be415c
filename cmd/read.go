// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/internal/gatt"
	"github.com/Thermoquad/baristat/pkg/jura"
)

var (
	readDecode bool
	readByUUID bool
)

var readCmd = &cobra.Command{
	Use:   "read CHARACTERISTIC",
	Short: "Read one characteristic and print its raw value",
	Long: `Read a single characteristic by name and print the value in hex.

With --decode the session key is recovered from the machine status first and
the value is printed deciphered as well.`,
	Example: `  baristat read manufacturer_data --device AA:BB:CC:DD:EE:FF
  baristat read read_stat --uuid --decode`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: characteristicNames(),
	RunE:      runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().BoolVar(&readDecode, "decode", false, "Decipher the value with the session key")
	readCmd.Flags().BoolVar(&readByUUID, "uuid", false, "Read by UUID instead of handle")
}

func characteristicNames() []string {
	names := make([]string, len(gatt.Characteristics))
	for i, c := range gatt.Characteristics {
		names[i] = c.Name
	}
	return names
}

func lookupCharacteristic(name string) (gatt.Characteristic, error) {
	c, ok := gatt.Lookup(name)
	if !ok {
		return gatt.Characteristic{}, fmt.Errorf("unknown characteristic %q (known: %s)", name, strings.Join(characteristicNames(), ", "))
	}
	return c, nil
}

func runRead(cmd *cobra.Command, args []string) error {
	c, err := lookupCharacteristic(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	var key jura.Key
	if readDecode {
		if key, err = newClient(sess).Handshake(ctx); err != nil {
			return err
		}
		fmt.Printf("Key:     %s\n", key)
	}

	read := sess.Read
	if readByUUID {
		read = sess.ReadUUID
	}
	raw, err := read(ctx, c)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", c)
	fmt.Printf("Raw:     %s\n", jura.FormatHex(raw))
	if readDecode {
		fmt.Printf("Decoded: %s\n", jura.FormatHex(jura.Decode(raw, key)))
	}
	return nil
}
