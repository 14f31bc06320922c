package project

import (
	"errors"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// ErrSizeUnresolved is returned by AwaitSize when no size computation has
// been started for the record.
var ErrSizeUnresolved = errors.New("artifact size not resolved")

// manifestDoc mirrors the subset of the manifest we care about: the
// package name and the workspace members list. Full semantic parsing is
// deliberately out of scope.
type manifestDoc struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Workspace *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

type manifestInfo struct {
	name      string
	workspace bool
	members   []string
}

// parseManifest reads and decodes a manifest. A decode failure is not an
// error: the project is still real, we just know nothing about it beyond
// its location. Read failures (permission denied, vanished file) are
// returned so the caller can skip the subtree.
func parseManifest(path string) (manifestInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifestInfo{}, err
	}

	var doc manifestDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		logrus.WithField("manifest", path).WithError(err).
			Debug("manifest is malformed, treating as plain project root")
		return manifestInfo{}, nil
	}

	info := manifestInfo{name: doc.Package.Name}
	if doc.Workspace != nil {
		info.workspace = true
		info.members = doc.Workspace.Members
	}
	return info, nil
}
