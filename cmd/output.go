package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// writeJSON writes v as indented JSON to path, or to out when path is empty.
func writeJSON(out io.Writer, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize output to JSON: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err := out.Write(data)
		return err
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(expanded, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// saveScreenshots writes the result's screenshots to dir as
// <task>-<checkpoint>.png and drops the image bytes from the result.
func saveScreenshots(dir string, result *schemas.FillResult) ([]string, error) {
	if dir == "" || result == nil || len(result.Screenshots) == 0 {
		return nil, nil
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	paths := make([]string, 0, len(result.Screenshots))
	for i, shot := range result.Screenshots {
		path := filepath.Join(expanded, fmt.Sprintf("%s-%s.png", result.TaskID, shot.Checkpoint))
		if err := os.WriteFile(path, shot.Data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write screenshot: %w", err)
		}
		result.Screenshots[i].Data = nil
		paths = append(paths, path)
	}
	return paths, nil
}
