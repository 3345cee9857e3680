package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/DrSkyle/vitool/pkg/cipher"
	"github.com/DrSkyle/vitool/pkg/option"
	"github.com/DrSkyle/vitool/pkg/shell"
)

const GroupCipher = "Cipher Commands"

// RegisterCipher adds the cipher commands. algorithm is the default for
// --algorithm.
func RegisterCipher(r *shell.Registry, k *cipher.Keeper, prompter option.Prompter, algorithm string) {
	if algorithm == "" {
		algorithm = cipher.AlgPBEWithMD5AndDES
	}
	ready := k.Gate()

	algorithmFlag := func(fs *pflag.FlagSet) {
		fs.String("algorithm", algorithm, cipher.AlgPBEWithMD5AndDES+" or "+cipher.AlgPBKDF2AES256)
	}

	r.Register(&shell.Command{
		Name:  "cipher set-password",
		Group: GroupCipher,
		Help:  "Set the password used by cipher encrypt and decrypt.",
		Usage: "[password]",
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			pw, err := option.Value(inv.Rest()).
				OrEnv(cipher.EnvPassword).
				OrInput(prompter, "Enter cipher password:").
				Require("`password` cannot be inferred")
			if err != nil {
				return err
			}
			k.SetPassword(pw)
			inv.Printf("Cipher password has been set.\n")
			return nil
		},
	})

	r.Register(&shell.Command{
		Name:  "cipher encrypt",
		Group: GroupCipher,
		Help:  "Encrypt the given input string.",
		Usage: "<input>",
		Flags: algorithmFlag,
		Gate:  ready,
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			c, err := cipher.New(inv.String("algorithm"))
			if err != nil {
				return err
			}
			in, err := option.Value(inv.Rest()).
				OrInput(prompter, "Enter input:", option.Unmasked()).
				Require("`input` cannot be inferred")
			if err != nil {
				return err
			}
			out, err := c.Encrypt(in, k.Password())
			if err != nil {
				return err
			}
			inv.Printf("%s\n", out)
			return nil
		},
	})

	r.Register(&shell.Command{
		Name:  "cipher decrypt",
		Group: GroupCipher,
		Help:  "Decrypt the given (encrypted) input string.",
		Usage: "<encrypted-input>",
		Flags: algorithmFlag,
		Gate:  ready,
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			c, err := cipher.New(inv.String("algorithm"))
			if err != nil {
				return err
			}
			in, err := option.Value(inv.Rest()).
				OrInput(prompter, "Enter encrypted input:", option.Unmasked()).
				Require("`encrypted-input` cannot be inferred")
			if err != nil {
				return err
			}
			out, err := c.Decrypt(in, k.Password())
			if err != nil {
				return err
			}
			inv.Printf("%s\n", out)
			return nil
		},
	})
}
