// Package catalog loads the catalog snapshot the pipeline runs over.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Item is one catalog row. Key is the stable SKU used as the asset filename
// stem; the descriptive fields feed query construction and logging only.
type Item struct {
	Key          string
	Title        string
	Manufacturer string
	Category     string
}

// Column aliases accepted in CSV headers, checked in order.
var columnAliases = map[string][]string{
	"key":          {"sku", "upc", "barcode"},
	"title":        {"description", "title", "name"},
	"manufacturer": {"manufacturer", "brand", "mfg"},
	"category":     {"category", "dept", "department"},
}

type columnMap map[string]int

// Load reads the CSV snapshot at path. Rows without a key are dropped.
// Header detection is case-insensitive and alias-aware, so exports from
// different inventory systems load without remapping.
func Load(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	items, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return items, nil
}

// Parse reads catalog items from CSV content.
func Parse(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := detectColumns(header)
	if err != nil {
		return nil, err
	}

	var items []Item
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		item := Item{
			Key:          field(record, cols, "key"),
			Title:        field(record, cols, "title"),
			Manufacturer: field(record, cols, "manufacturer"),
			Category:     field(record, cols, "category"),
		}
		if item.Key == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func detectColumns(header []string) (columnMap, error) {
	lower := make(map[string]int, len(header))
	for i, name := range header {
		lower[strings.ToLower(strings.TrimSpace(name))] = i
	}

	cols := make(columnMap)
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if idx, ok := lower[alias]; ok {
				cols[canonical] = idx
				break
			}
		}
	}
	if _, ok := cols["key"]; !ok {
		return nil, fmt.Errorf("no key column found (tried %s)", strings.Join(columnAliases["key"], ", "))
	}
	return cols, nil
}

func field(record []string, cols columnMap, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
