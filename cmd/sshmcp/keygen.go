package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ruffel/sshmcp/keys"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		keyType    string
		bits       int
		comment    string
		file       string
		force      bool
		show       bool
		passphrase string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an SSH key pair or show a key's fingerprint",
		Example: `  sshmcp keygen -f ~/.ssh/id_deploy -C deploy@ci
  sshmcp keygen -t rsa -b 4096
  sshmcp keygen -l -f ~/.ssh/id_ed25519`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if show {
				if file == "" {
					return errors.New("-l needs a key file (-f)")
				}

				pair, err := keys.Load(file, passphrase)
				if err != nil {
					return err
				}

				fmt.Fprintln(out, field("Type", pair.Type))
				fmt.Fprintln(out, field("Fingerprint", pair.Fingerprint))
				fmt.Fprintln(out, field("Public key", pair.PublicKey))

				return nil
			}

			if file != "" && !force {
				if _, err := os.Stat(file); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", file)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			pair, err := keys.Generate(keyType, bits, comment)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, titleStyle.Render("Generated "+pair.Type+" key pair"))
			fmt.Fprintln(out, field("Fingerprint", pair.Fingerprint))

			if file == "" {
				fmt.Fprintln(out, field("Public key", pair.PublicKey))
				fmt.Fprint(out, string(pair.PrivateKey))

				return nil
			}

			if err := keys.Save(pair, file); err != nil {
				return err
			}

			fmt.Fprintln(out, field("Private key", file))
			fmt.Fprintln(out, field("Public key", file+".pub"))

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&keyType, "type", "t", keys.TypeEd25519, "key type: ed25519 or rsa")
	flags.IntVarP(&bits, "bits", "b", 0, "RSA key size (default 4096)")
	flags.StringVarP(&comment, "comment", "C", "", "key comment")
	flags.StringVarP(&file, "file", "f", "", "write the private key here and the public key to FILE.pub")
	flags.BoolVar(&force, "force", false, "overwrite an existing key file")
	flags.BoolVarP(&show, "fingerprint", "l", false, "show the fingerprint of the key in -f")
	flags.StringVar(&passphrase, "passphrase", "", "passphrase for an encrypted key (with -l)")

	return cmd
}
