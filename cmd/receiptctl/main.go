// Command receiptctl validates and normalizes receipt documents offline.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"receipt-schema-api/internal/codec"
	"receipt-schema-api/internal/models"
	"receipt-schema-api/internal/validation"
)

// errInvalid signals that at least one document failed validation. Its
// details have already been printed.
var errInvalid = errors.New("one or more receipts are invalid")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "receiptctl",
		Short:         "Validate and normalize receipt documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newNormalizeCmd(), newSchemaCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var withSchema bool

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check receipt documents (JSON or YAML) against the receipt contract",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0

			for _, path := range args {
				if err := validateFile(path, withSchema); err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s\n", path)
			}

			if failed > 0 {
				fmt.Fprintf(out, "%d of %d receipts invalid\n", failed, len(args))
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSchema, "schema", false, "also check the document against the published JSON schema")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <file>",
		Short: "Parse a receipt and print its canonical JSON form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readReceipt(args[0])
			if err != nil {
				return err
			}
			data, err := codec.MarshalIndent(r, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode receipt: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the receipt JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), string(codec.SchemaDocument()))
			return nil
		},
	}
}

func validateFile(path string, withSchema bool) error {
	if withSchema {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := decode(path, data)
		if err != nil {
			return err
		}
		if err := codec.CheckDocument(doc); err != nil {
			return err
		}
	}

	_, err := readReceipt(path)
	return err
}

func readReceipt(path string) (models.Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Receipt{}, err
	}

	var r models.Receipt
	if isYAML(path) {
		r, err = codec.ParseYAML(data)
	} else {
		r, err = codec.ParseJSON(data)
	}
	if err != nil {
		if ve, ok := validation.IsValidationError(err); ok {
			return models.Receipt{}, fmt.Errorf("%s (%s)", ve.Error(), ve.Kind)
		}
		return models.Receipt{}, err
	}
	return r, nil
}

func decode(path string, data []byte) (any, error) {
	if isYAML(path) {
		return codec.DecodeYAML(data)
	}
	return codec.DecodeJSON(data)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
