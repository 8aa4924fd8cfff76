package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/imclient/internal/config"
	"github.com/vango-dev/imclient/internal/errors"
)

func initCmd(configDir *string) *cobra.Command {
	var (
		account int64
		address string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter imclient.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Exists(*configDir) && !force {
				return errors.New("E140").
					WithDetail(config.ConfigFileName + " already exists in " + *configDir).
					WithSuggestion("Pass --force to overwrite it")
			}
			cfg := config.New()
			cfg.Account = account
			cfg.Server.Address = address
			cfg.Session.LoadContacts = true
			path := filepath.Join(*configDir, config.ConfigFileName)
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			success("Wrote %s", path)
			info("Set the token in the file or in $%s", config.TokenEnv)
			return nil
		},
	}

	cmd.Flags().Int64Var(&account, "account", 0, "Login account")
	cmd.Flags().StringVar(&address, "address", "127.0.0.1:8000", "Server host:port")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
