package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/crawlkit/sessiond/cmd/common"
	"github.com/crawlkit/sessiond/pkg/credstore"
)

// secretSet stores a named proxy credential in the system keyring so
// config files can reference it via auth_secret.
func secretSet(ctx *cli.Context) error {
	name := ctx.Args().Get(0)
	value := ctx.Args().Get(1)
	if name == "" || value == "" {
		common.PrintRuntimeErr(ctx, "secret", "set", errors.New("usage: sessiond secret set <name> <value>"))
		return nil
	}
	if err := credstore.New().Set(name, value); err != nil {
		common.PrintRuntimeErr(ctx, "secret", "set", err)
		return nil
	}
	fmt.Printf("secret %q stored\n", name)
	return nil
}

func secretDelete(ctx *cli.Context) error {
	name := ctx.Args().First()
	if name == "" {
		common.PrintRuntimeErr(ctx, "secret", "delete", errors.New("usage: sessiond secret delete <name>"))
		return nil
	}
	if err := credstore.New().Delete(name); err != nil {
		common.PrintRuntimeErr(ctx, "secret", "delete", err)
		return nil
	}
	fmt.Printf("secret %q removed\n", name)
	return nil
}
