package cipher

import (
	"github.com/DrSkyle/vitool/pkg/option"
	"github.com/DrSkyle/vitool/pkg/shell"
)

// EnvPassword seeds `cipher set-password` when no value is given.
const EnvPassword = "VI_CIPHER_PASSWORD"

// ReasonNoPassword is reported while no password has been set.
const ReasonNoPassword = "the cipher password has not been set yet"

// Keeper holds the password shared by the encrypt and decrypt commands.
type Keeper struct {
	password string
}

func (k *Keeper) SetPassword(p string) { k.password = p }

func (k *Keeper) Password() string { return k.password }

// Ready reports whether a non-blank password is held.
func (k *Keeper) Ready() bool { return !option.IsBlank(k.password) }

// Gate guards commands that need the password.
func (k *Keeper) Gate() *shell.Gate {
	return &shell.Gate{
		Name: "cipher-password",
		Check: func() shell.Availability {
			if k.Ready() {
				return shell.Available()
			}
			return shell.Unavailable(ReasonNoPassword)
		},
	}
}
