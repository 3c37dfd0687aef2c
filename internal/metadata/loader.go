package metadata

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/GeorgelPreput/pushcart-deploy/pkg/logger"
)

// LoadFile reads one configuration fragment into a generic map,
// dispatching on the file extension. Every failure mode (missing file,
// unreadable file, malformed content, unsupported extension) is logged as
// a warning and yields nil: a directory scan must shrug off stray or
// partially written files instead of aborting.
func LoadFile(path string) map[string]interface{} {
	parse := parserFor(filepath.Ext(path))
	if parse == nil {
		logger.Warnf("Unsupported file type: %s", path)
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warnf("File not found: %s", path)
		} else {
			logger.Warnf("Could not open file: %s (%v)", path, err)
		}
		return nil
	}

	config, err := parse(raw)
	if err != nil {
		logger.Warnf("File is not valid: %s (%v)", path, err)
		return nil
	}
	return config
}

func parserFor(ext string) func([]byte) (map[string]interface{}, error) {
	switch ext {
	case ".json":
		return parseJSON
	case ".toml":
		return parseTOML
	case ".yaml", ".yml":
		return parseYAML
	}
	return nil
}

func parseJSON(raw []byte) (map[string]interface{}, error) {
	var config map[string]interface{}
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, err
	}
	return config, nil
}

func parseTOML(raw []byte) (map[string]interface{}, error) {
	var config map[string]interface{}
	if err := toml.Unmarshal(raw, &config); err != nil {
		return nil, err
	}
	return config, nil
}

func parseYAML(raw []byte) (map[string]interface{}, error) {
	var config map[string]interface{}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, err
	}
	return config, nil
}
