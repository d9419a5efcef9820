package report

import (
	"os"

	"github.com/rotisserie/eris"
)

// ReadYAMLFile opens path and decodes it with ReadYAML.
func ReadYAMLFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, eris.Wrap(err, "report: open yaml")
	}
	defer f.Close() //nolint:errcheck
	return ReadYAML(f)
}

// WriteFile writes r to path in the format implied by its extension.
func WriteFile(path string, r Report) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create file")
	}
	if err := Write(f, format, r); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "report: close file")
}
