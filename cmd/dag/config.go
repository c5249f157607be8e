package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/bobg/dag"
	"github.com/bobg/dag/store"
)

// config is the parsed contents of a config file.
// The "type" entry names the store backend,
// and the whole map is passed to it.
// A few entries configure the dag.Store on top:
// "hash" (blake3 or sha256),
// "cache" (number of decoded chunks to keep in memory),
// and "log_level".
type config struct {
	Type      string
	HashFn    dag.HashFunc
	CacheSize int
	LogLevel  logrus.Level

	raw map[string]interface{}
}

func loadConfig(filename string) (*config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", filename)
	}

	var raw map[string]interface{}
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &raw)
	default:
		err = json.Unmarshal(b, &raw)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding config file %s", filename)
	}

	conf, err := parseConfig(raw)
	return conf, errors.Wrapf(err, "in config file %s", filename)
}

func parseConfig(raw map[string]interface{}) (*config, error) {
	conf := &config{
		HashFn:   dag.Blake3,
		LogLevel: logrus.InfoLevel,
		raw:      raw,
	}

	typ, ok := raw["type"].(string)
	if !ok {
		return nil, errors.New("missing `type` parameter")
	}
	conf.Type = typ

	if h, ok := raw["hash"]; ok {
		switch h {
		case "blake3":
			conf.HashFn = dag.Blake3
		case "sha256":
			conf.HashFn = dag.SHA256
		default:
			return nil, errors.Errorf("unknown hash %v", h)
		}
	}

	if c, ok := raw["cache"]; ok {
		n, err := intParam(c)
		if err != nil {
			return nil, errors.Wrap(err, "parsing `cache` parameter")
		}
		conf.CacheSize = n
	}

	if l, ok := raw["log_level"].(string); ok {
		level, err := logrus.ParseLevel(l)
		if err != nil {
			return nil, errors.Wrap(err, "parsing `log_level` parameter")
		}
		conf.LogLevel = level
	}

	return conf, nil
}

func (conf *config) createKV(ctx context.Context) (dag.KV, error) {
	return store.Create(ctx, conf.Type, conf.raw)
}

// intParam accepts the integer forms that JSON and YAML decoding produce.
func intParam(x interface{}) (int, error) {
	switch x := x.(type) {
	case int:
		return x, nil
	case float64:
		if x != float64(int(x)) {
			return 0, errors.Errorf("%v is not an integer", x)
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		return n, errors.Wrapf(err, "parsing %q", x)
	}
	return 0, errors.Errorf("%v is not an integer", x)
}
