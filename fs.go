package main

import (
	"os"

	"github.com/spf13/afero"
)

// ConfigFS is an Afero FS that also knows the user's home directory, so
// config lookup can be replicated in tests.
type ConfigFS interface {
	afero.Fs
	HomeDir() (string, error)
}

type osFS struct {
	afero.Fs
}

func NewOSFS() ConfigFS {
	return &osFS{
		afero.NewOsFs(),
	}
}

func (o *osFS) HomeDir() (string, error) {
	return os.UserHomeDir()
}

type memFS struct {
	afero.Fs
	home string
}

func NewMemFS() ConfigFS {
	return &memFS{
		Fs:   afero.NewMemMapFs(),
		home: "/home/pi",
	}
}

func (m *memFS) HomeDir() (string, error) {
	return m.home, nil
}
