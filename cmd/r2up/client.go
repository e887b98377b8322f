package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JohnGrosso13/r2up"
	"github.com/JohnGrosso13/r2up/config"
)

var (
	profileName  string
	profilesFile string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "P", "", "credential profile name (env: R2UP_PROFILE)")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles-file", "", "profile file path (default: ~/.r2up/config.yaml)")
}

// resolveCredentials merges the saved profile with the loaded
// configuration. Config values, which already carry env and flag
// overrides, win over profile values.
func resolveCredentials(cfg *config.Config) (r2up.Credentials, error) {
	creds := r2up.Credentials{}

	name := profileName
	if name == "" {
		name = ProfileFromEnv()
	}

	path := profilesFile
	if path == "" {
		path = DefaultProfilePath()
	}

	if path != "" {
		pf, err := LoadProfileFile(path)
		switch {
		case err == nil:
			p, perr := pf.GetProfile(name)
			if perr != nil {
				if name != "" || !errors.Is(perr, errNoProfiles) {
					return r2up.Credentials{}, perr
				}
			} else {
				creds = p.Credentials()
			}
		case name != "" || profilesFile != "":
			// Only fail when the user asked for a profile explicitly.
			return r2up.Credentials{}, err
		}
	}

	if cfg.Store.Credentials.AccessKeyID != "" {
		creds.AccessKeyID = cfg.Store.Credentials.AccessKeyID
	}
	if cfg.Store.Credentials.SecretAccessKey != "" {
		creds.SecretAccessKey = cfg.Store.Credentials.SecretAccessKey
	}
	if cfg.Store.Credentials.AccountHost != "" {
		creds.AccountHost = cfg.Store.Credentials.AccountHost
	}
	if cfg.Store.Credentials.Bucket != "" {
		creds.Bucket = cfg.Store.Credentials.Bucket
	}
	if cfg.Store.Credentials.Region != "" {
		creds.Region = cfg.Store.Credentials.Region
	}
	if cfg.Store.Credentials.Endpoint != "" {
		creds.Endpoint = cfg.Store.Credentials.Endpoint
	}

	return creds, nil
}

// clientService builds a store-facing service from the resolved
// credentials. No session ledger is attached; client commands talk to the
// store directly.
func clientService(cmd *cobra.Command) (*r2up.Service, error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return nil, err
	}

	creds, err := resolveCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svcCfg, err := cfg.ServiceConfig()
	if err != nil {
		return nil, err
	}
	svcCfg.Credentials = creds
	svcCfg.Ledger = nil

	service, err := r2up.NewService(svcCfg)
	if err != nil {
		if errors.Is(err, r2up.ErrMissingConfig) {
			return nil, fmt.Errorf("%w (run 'r2up configure add' or set R2UP_STORE_CREDENTIALS_* variables)", err)
		}
		return nil, err
	}
	return service, nil
}
