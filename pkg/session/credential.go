package session

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/auralis-ai/auralis/pkg/errorsx"
)

const credentialKey = "credential"

// CredentialStore persists the last-used API credential to a small yaml file.
// Read at startup, written once per connection on the first successful setup
// completion.
type CredentialStore struct {
	path string
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// DefaultCredentialPath places the store under the user config dir, falling
// back to the working directory when none is resolvable.
func DefaultCredentialPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".auralis-credential.yaml"
	}
	return filepath.Join(dir, "auralis", "credential.yaml")
}

// Load returns the stored credential, or "" when none has been saved yet.
func (s *CredentialStore) Load() (string, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return "", nil
		}
		return "", errorsx.Wrap(err, errorsx.ReasonCredentialStore)
	}
	return v.GetString(credentialKey), nil
}

func (s *CredentialStore) Save(credential string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonCredentialStore)
	}
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	v.Set(credentialKey, credential)
	if err := v.WriteConfigAs(s.path); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonCredentialStore)
	}
	return nil
}
