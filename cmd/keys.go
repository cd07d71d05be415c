// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/baristat/pkg/machinefile"
)

var (
	keysModel   int
	keysMachine string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print the tables of a machine file",
	Long: `Print the product table, maintenance labels and alert table of a machine.

The machine is selected by model number from the resource archive (--model),
or read directly from an XML file (--machine). Table problems such as
duplicate product codes are listed at the end.`,
	RunE: runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.Flags().IntVar(&keysModel, "model", 0, "Model number from the resource archive")
	keysCmd.Flags().StringVarP(&keysMachine, "machine", "m", "", "Machine file to read")
}

func runKeys(cmd *cobra.Command, args []string) error {
	var machine *machinefile.Machine

	switch {
	case keysMachine != "":
		m, err := loadMachineFile(keysMachine)
		if err != nil {
			return err
		}
		machine = m
		fmt.Printf("Machine file: %s\n", keysMachine)
	case keysModel != 0:
		resources, err := machinefile.OpenResources(cfg.Resources)
		if err != nil {
			return err
		}
		defer resources.Close()
		model, m, err := resources.Lookup(keysModel)
		if err != nil {
			return err
		}
		machine = m
		fmt.Printf("Model: %s (%d, %s)\n", model.Name, model.Number, model.File)
	default:
		return fmt.Errorf("either --model or --machine must be specified")
	}

	fmt.Printf("\nProducts (%d):\n", len(machine.Products))
	for _, p := range machine.Products {
		fmt.Printf("  0x%02X  %s\n", p.Code, p.Name)
	}

	fmt.Printf("\nMaintenance percent (%d):\n", len(machine.CleaningPercent))
	for i, label := range machine.CleaningPercent {
		fmt.Printf("  %2d  %s\n", i, label)
	}

	fmt.Printf("\nMaintenance count (%d):\n", len(machine.CleaningCount))
	for i, label := range machine.CleaningCount {
		fmt.Printf("  %2d  %s\n", i, label)
	}

	fmt.Printf("\nAlerts:\n")
	for bit, label := range machine.Alerts {
		if label != "" {
			fmt.Printf("  %3d  %s\n", bit, label)
		}
	}

	if err := machine.Validate(); err != nil {
		fmt.Printf("\nIssues:\n%v\n", err)
	}
	return nil
}
