package datrie

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/goccy/go-reflect"
	"github.com/oarkflow/filters"
	"github.com/oarkflow/json"
	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/connection"

	"github.com/oarkflow/datrie/utils"
)

// Entry is one dictionary pair ready for insertion.
type Entry struct {
	Key   string `json:"key"`
	Value int32  `json:"value"`
}

// DBConfig describes a database source of dictionary entries.
type DBConfig struct {
	DBType  string `json:"type,omitempty"`
	DBHost  string `json:"host,omitempty"`
	DBPort  int    `json:"port,omitempty"`
	DBUser  string `json:"user,omitempty"`
	DBPass  string `json:"password,omitempty"`
	DBName  string `json:"database,omitempty"`
	DBQuery string `json:"query,omitempty"`
}

// IngestRequest names a source of entries: inline data, a JSON file holding
// an array of records, or a database query. Condition is an optional
// SQL-style predicate applied to each record before insertion; KeyField and
// ValueField override the default "key"/"value" record fields.
type IngestRequest struct {
	Path       string    `json:"path"`
	Data       []Entry   `json:"data"`
	Database   *DBConfig `json:"database,omitempty"`
	Condition  string    `json:"condition,omitempty"`
	KeyField   string    `json:"key_field,omitempty"`
	ValueField string    `json:"value_field,omitempty"`
}

func (req *IngestRequest) fields() (string, string) {
	key, value := req.KeyField, req.ValueField
	if key == "" {
		key = "key"
	}
	if value == "" {
		value = "value"
	}
	return key, value
}

func (req *IngestRequest) rule() (*filters.Rule, error) {
	if req.Condition == "" {
		return nil, nil
	}
	rule, err := filters.ParseSQL(req.Condition)
	if err != nil {
		return nil, fmt.Errorf("datrie: parsing condition: %v", err)
	}
	return rule, nil
}

// Ingest bulk-loads entries from the requested source into t and returns
// the number of entries inserted. Records that fail to decode or carry an
// unusable key or value are skipped with a log line; source errors abort.
func Ingest(ctx context.Context, t Trie, req IngestRequest) (int, error) {
	rule, err := req.rule()
	if err != nil {
		return 0, err
	}
	switch {
	case req.Database != nil:
		return ingestDatabase(ctx, t, req, rule)
	case req.Path != "":
		f, err := os.Open(req.Path)
		if err != nil {
			return 0, fmt.Errorf("datrie: open %s: %w", req.Path, err)
		}
		defer f.Close()
		return ingestReader(ctx, t, f, req, rule)
	case len(req.Data) > 0:
		count := 0
		for _, e := range req.Data {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			if rule != nil && !rule.Match(map[string]any{"key": e.Key, "value": e.Value}) {
				continue
			}
			if err := t.Insert([]byte(e.Key), e.Value); err != nil {
				log.Printf("skipping entry %q: %v", e.Key, err)
				continue
			}
			count++
		}
		return count, nil
	default:
		return 0, fmt.Errorf("datrie: no data, path, or database config provided")
	}
}

func ingestReader(ctx context.Context, t Trie, r io.Reader, req IngestRequest, rule *filters.Rule) (int, error) {
	keyField, valueField := req.fields()
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	tok, err := decoder.Token()
	if err != nil {
		return 0, fmt.Errorf("datrie: failed to read JSON token: %v", err)
	}
	d, ok := tok.(json.Delim)
	if !ok || d != '[' {
		return 0, fmt.Errorf("datrie: invalid JSON array, expected '[' got %v", tok)
	}
	count := 0
	for decoder.More() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		var rec map[string]any
		if err := decoder.Decode(&rec); err != nil {
			log.Printf("skipping invalid record: %v", err)
			continue
		}
		if n, ok := insertRecord(t, rec, keyField, valueField, rule); ok {
			count += n
		}
	}
	return count, nil
}

func ingestDatabase(ctx context.Context, t Trie, req IngestRequest, rule *filters.Rule) (int, error) {
	db, _, err := connection.FromConfig(squealx.Config{
		Host:     req.Database.DBHost,
		Port:     req.Database.DBPort,
		Driver:   req.Database.DBType,
		Username: req.Database.DBUser,
		Password: req.Database.DBPass,
		Database: req.Database.DBName,
	})
	if err != nil {
		return 0, fmt.Errorf("datrie: failed to connect to database: %v", err)
	}
	defer db.Close()
	keyField, valueField := req.fields()
	count := 0
	err = squealx.SelectEach(db, func(row map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n, ok := insertRecord(t, row, keyField, valueField, rule); ok {
			count += n
		}
		return nil
	}, req.Database.DBQuery)
	if err != nil {
		return count, err
	}
	return count, nil
}

func insertRecord(t Trie, rec map[string]any, keyField, valueField string, rule *filters.Rule) (int, bool) {
	if rule != nil && !rule.Match(rec) {
		return 0, false
	}
	key := utils.ToString(rec[keyField])
	value, ok := utils.ToInt32(rec[valueField])
	if key == "" || !ok {
		log.Printf("skipping record without usable %s/%s: %v", keyField, valueField, rec)
		return 0, false
	}
	if err := t.Insert([]byte(key), value); err != nil {
		log.Printf("skipping entry %q: %v", key, err)
		return 0, false
	}
	return 1, true
}

// IngestSlice adapts an arbitrary slice into entries and inserts them. Slice
// elements may be Entry values, maps, or structs with Key/Value fields.
func IngestSlice(ctx context.Context, t Trie, input any) (int, error) {
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, fmt.Errorf("datrie: unsupported input type: %T", input)
	}
	count := 0
	for i := 0; i < rv.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		e, err := adaptEntry(rv.Index(i).Interface())
		if err != nil {
			log.Printf("skipping element %d: %v", i, err)
			continue
		}
		if err := t.Insert([]byte(e.Key), e.Value); err != nil {
			log.Printf("skipping entry %q: %v", e.Key, err)
			continue
		}
		count++
	}
	return count, nil
}

func adaptEntry(value any) (Entry, error) {
	switch v := value.(type) {
	case Entry:
		return v, nil
	case map[string]any:
		val, ok := utils.ToInt32(v["value"])
		if !ok {
			return Entry{}, fmt.Errorf("map entry has no numeric value")
		}
		return Entry{Key: utils.ToString(v["key"]), Value: val}, nil
	case map[string]int32:
		for k, val := range v {
			return Entry{Key: k, Value: val}, nil
		}
		return Entry{}, fmt.Errorf("empty map entry")
	}
	rv := reflect.Indirect(reflect.ValueOf(value))
	if rv.Kind() != reflect.Struct {
		return Entry{}, fmt.Errorf("cannot adapt %T", value)
	}
	key := rv.FieldByName("Key")
	val := rv.FieldByName("Value")
	if !key.IsValid() || !val.IsValid() {
		return Entry{}, fmt.Errorf("struct %T lacks Key/Value fields", value)
	}
	v32, ok := utils.ToInt32(val.Interface())
	if !ok {
		return Entry{}, fmt.Errorf("struct %T has non-numeric Value", value)
	}
	return Entry{Key: utils.ToString(key.Interface()), Value: v32}, nil
}
