package main

import (
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed gpiocount.service
var serviceEmbed string

type ServiceParams struct {
	BinaryPath string
	ConfigPath string
	User       string
}

// WriteServiceFile renders the systemd unit for the running binary.
func WriteServiceFile(w io.Writer, configPath string) error {
	tmpl, err := template.New("gpiocount.service").Parse(serviceEmbed)
	if err != nil {
		return err
	}

	path, err := os.Executable()
	if err != nil {
		return err
	}

	if configPath != "" {
		if configPath, err = filepath.Abs(configPath); err != nil {
			return err
		}
	}

	params := ServiceParams{
		BinaryPath: path,
		ConfigPath: configPath,
		// GPIO access needs root unless udev rules grant the gpio group
		User: "root",
	}

	return tmpl.Execute(w, params)
}
