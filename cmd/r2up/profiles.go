package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/JohnGrosso13/r2up"
)

// Errors for profile operations.
var (
	errProfileNotFound = errors.New("profile not found")
	errNoProfiles      = errors.New("no profiles configured")
)

// Profile holds saved store credentials for one account.
type Profile struct {
	Name            string `yaml:"name"`
	AccountHost     string `yaml:"account_host"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	Default         bool   `yaml:"default,omitempty"`
}

// Credentials converts the profile into store credentials.
func (p *Profile) Credentials() r2up.Credentials {
	return r2up.Credentials{
		AccessKeyID:     p.AccessKeyID,
		SecretAccessKey: p.SecretAccessKey,
		AccountHost:     p.AccountHost,
		Bucket:          p.Bucket,
	}
}

// ProfileFile holds the full profile file structure.
type ProfileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// GetProfile returns the profile by name.
// If name is empty, returns the default profile.
func (c *ProfileFile) GetProfile(name string) (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, errNoProfiles
	}

	if name == "" {
		return c.GetDefaultProfile()
	}

	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", errProfileNotFound, name)
}

// GetDefaultProfile returns the profile marked default, or the first
// profile if none is marked.
func (c *ProfileFile) GetDefaultProfile() (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, errNoProfiles
	}

	for i := range c.Profiles {
		if c.Profiles[i].Default {
			return &c.Profiles[i], nil
		}
	}

	return &c.Profiles[0], nil
}

// SetProfile adds the profile, replacing any existing profile with the
// same name.
func (c *ProfileFile) SetProfile(p Profile) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == p.Name {
			c.Profiles[i] = p
			return
		}
	}
	c.Profiles = append(c.Profiles, p)
}

// RemoveProfile removes a profile by name.
func (c *ProfileFile) RemoveProfile(name string) error {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errProfileNotFound, name)
}

// SetDefault sets the default profile by name and clears the default flag
// from all others.
func (c *ProfileFile) SetDefault(name string) error {
	found := false
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			c.Profiles[i].Default = true
			found = true
		} else {
			c.Profiles[i].Default = false
		}
	}

	if !found {
		return fmt.Errorf("%w: %s", errProfileNotFound, name)
	}
	return nil
}

// Save writes the profile file to the specified path.
// Creates the parent directory if it doesn't exist.
func (c *ProfileFile) Save(path string) error {
	cleanPath := filepath.Clean(path)

	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write profile file: %w", err)
	}

	return nil
}

// LoadProfileFile loads the profile file from the specified path.
func LoadProfileFile(path string) (*ProfileFile, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) //#nosec G304 -- path is user-provided profile file
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	var cfg ProfileFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse profile file: %w", err)
	}

	return &cfg, nil
}

// DefaultProfilePath returns the default profile file path
// (~/.r2up/config.yaml).
func DefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".r2up", "config.yaml")
}

// ProfileFromEnv returns the profile name from the R2UP_PROFILE
// environment variable.
func ProfileFromEnv() string {
	return os.Getenv("R2UP_PROFILE")
}
