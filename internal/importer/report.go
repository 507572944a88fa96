package importer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/koustreak/ffiload/internal/errs"
	"go.yaml.in/yaml/v3"
)

// WriteReport writes rep as YAML into dir, named after the file and its
// start time, and returns the path written.
func WriteReport(dir string, rep *Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.Wrap(errs.ErrKindPermissionDenied, "create report dir", err)
	}

	data, err := yaml.Marshal(rep)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "encode report", err)
	}

	base := strings.TrimSuffix(filepath.Base(rep.File), filepath.Ext(rep.File))
	name := base + "." + rep.Started.UTC().Format("20060102T150405") + ".yaml"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errs.Wrap(errs.ErrKindPermissionDenied, "write report", err)
	}
	return path, nil
}

// ReadReport decodes a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindNotFound, "read report", err)
	}
	var rep Report
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "decode report", err)
	}
	return &rep, nil
}
