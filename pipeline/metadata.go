package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"churn/lib/value"
	"churn/storage"

	"github.com/buger/jsonparser"
)

// Metadata is the descriptor every saved pipeline and stage carries under
// <dir>/metadata.
type Metadata struct {
	Class string
	UID   string
	// Params holds the explicitly set params on top of the defaults.
	Params value.Dict
	// Extra holds the remaining top level fields, e.g. numFeatures of tree
	// models.
	Extra value.Dict
}

// ShortClass strips the package qualifier of a class name.
func (m Metadata) ShortClass() string {
	return m.Class[strings.LastIndex(m.Class, ".")+1:]
}

func parseMetadata(data []byte) (Metadata, error) {
	data = bytes.TrimSpace(data)
	class, err := jsonparser.GetString(data, "class")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read class: %w", err)
	}
	uid, err := jsonparser.GetString(data, "uid")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read uid: %w", err)
	}
	params := make(value.Dict)
	for _, key := range []string{"defaultParamMap", "paramMap"} {
		raw, vtype, _, err := jsonparser.Get(data, key)
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			continue
		}
		if err != nil {
			return Metadata{}, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if vtype != jsonparser.Object {
			return Metadata{}, fmt.Errorf("%s must be an object", key)
		}
		v, err := value.FromJSON(raw)
		if err != nil {
			return Metadata{}, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		for k, p := range v.(value.Dict) {
			params[k] = p
		}
	}
	doc, err := value.FromJSON(data)
	if err != nil {
		return Metadata{}, err
	}
	extra := make(value.Dict)
	if d, ok := doc.(value.Dict); ok {
		for k, v := range d {
			switch k {
			case "class", "uid", "paramMap", "defaultParamMap":
			default:
				extra[k] = v
			}
		}
	}
	return Metadata{Class: class, UID: uid, Params: params, Extra: extra}, nil
}

func readMetadata(ctx context.Context, store storage.Store, dir string) (Metadata, error) {
	data, err := readPart(ctx, store, storage.Join(dir, "metadata"))
	if err != nil {
		return Metadata{}, err
	}
	meta, err := parseMetadata(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("malformed metadata in '%s': %w", dir, err)
	}
	return meta, nil
}

// dataFiles lists the data files of a saved directory in name order,
// skipping markers such as _SUCCESS and checksum files.
func dataFiles(ctx context.Context, store storage.Store, dir string) ([]string, error) {
	entries, err := store.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list '%s': %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir || storage.Hidden(e.Name) {
			continue
		}
		files = append(files, storage.Join(dir, e.Name))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no data file in '%s'", dir)
	}
	return files, nil
}

func readPart(ctx context.Context, store storage.Store, dir string) ([]byte, error) {
	files, err := dataFiles(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	return store.ReadFile(ctx, files[0])
}

// readData reads the fitted state of a stage. Parquet part files are
// decoded to rows and shaped for the builder; otherwise the first part file
// holds a single JSON object.
func readData(ctx context.Context, store storage.Store, dir string, meta Metadata, shape shaper) (dict, error) {
	dataDir := storage.Join(dir, "data")
	files, err := dataFiles(ctx, store, dataDir)
	if err != nil {
		return nil, err
	}
	raw, err := store.ReadFile(ctx, files[0])
	if err != nil {
		return nil, err
	}
	if isParquet(files[0], raw) {
		rows, err := readRows(ctx, store, dataDir)
		if err != nil {
			return nil, err
		}
		if shape == nil {
			shape = singleRow
		}
		d, err := shape(ctx, store, dir, meta, rows)
		if err != nil {
			return nil, fmt.Errorf("malformed model data in '%s': %w", dir, err)
		}
		return d, nil
	}
	v, err := value.FromJSON(bytes.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed model data in '%s': %w", dir, err)
	}
	d, ok := v.(value.Dict)
	if !ok {
		return nil, fmt.Errorf("model data in '%s' must be a JSON object", dir)
	}
	return dict(d), nil
}
