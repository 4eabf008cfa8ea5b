package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantdb/internal/security/secretbox"
)

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Cifra un password para el catálogo (enc:...) con TENANTDB_SECRETBOX_KEY",
		Long:  "Sin argumento lee una línea de stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read stdin: %w", err)
				}
				plain = strings.TrimRight(line, "\r\n")
			}
			out, err := secretbox.Encrypt(plain)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}
