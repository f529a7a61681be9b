package agent

import (
	"path/filepath"
	"strings"
)

// InstallCommand is the fully resolved silent-install invocation for one
// downloaded installer.
type InstallCommand struct {
	Path string
	Args []string
}

// strategy maps a tool-name keyword to its silent-install arguments. The
// table is ordered and matched top to bottom against the lowercased tool
// name; the first hit wins. The final entry has an empty keyword and matches
// everything, so every tool resolves to some command.
type strategy struct {
	keyword string
	build   func(path string) InstallCommand
}

var strategies = []strategy{
	{"office", func(path string) InstallCommand {
		// Office deployment tool: setup.exe drives the bundled descriptor.
		return InstallCommand{Path: path, Args: []string{"/configure", configSibling(path)}}
	}},
	{"acrobat", func(path string) InstallCommand {
		return InstallCommand{Path: path, Args: []string{"/sAll", "/rs", "/rps", "/msi", "EULA_ACCEPT=YES"}}
	}},
	{"reader", func(path string) InstallCommand {
		return InstallCommand{Path: path, Args: []string{"/sAll", "/rs", "/rps", "/msi", "EULA_ACCEPT=YES"}}
	}},
	{"7-zip", func(path string) InstallCommand {
		return InstallCommand{Path: path, Args: []string{"/S"}}
	}},
	{"chrome", func(path string) InstallCommand {
		return InstallCommand{Path: path, Args: []string{"/silent", "/install"}}
	}},
	{"", genericCommand},
}

// CommandFor resolves the install command for a named tool. Matching is
// case-insensitive on the tool name.
func CommandFor(toolName, path string) InstallCommand {
	name := strings.ToLower(toolName)
	for _, s := range strategies {
		if s.keyword == "" || strings.Contains(name, s.keyword) {
			return s.build(path)
		}
	}
	// Unreachable: the table ends with a catch-all.
	return genericCommand(path)
}

// genericCommand is the default silent install: msiexec for MSI packages,
// the vendor's own /quiet /norestart convention for executables.
func genericCommand(path string) InstallCommand {
	if strings.EqualFold(filepath.Ext(path), ".msi") {
		return InstallCommand{Path: "msiexec", Args: []string{"/i", path, "/quiet", "/norestart"}}
	}
	return InstallCommand{Path: path, Args: []string{"/quiet", "/norestart"}}
}

// configSibling points at the deployment descriptor shipped next to an
// Office setup binary.
func configSibling(path string) string {
	return filepath.Join(filepath.Dir(path), "configuration.xml")
}
