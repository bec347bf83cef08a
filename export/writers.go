package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/c360studio/wardmap/aggregate"
	"github.com/c360studio/wardmap/crs"
	"github.com/c360studio/wardmap/feature"
)

// WriteJoined writes a feature table to path. The format follows the file
// extension: .geojson reprojects geometries to EPSG:4326 and omits features
// without geometry; .csv writes the attribute columns only.
func WriteJoined(path string, c *feature.Collection) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FormatGeoJSON:
		data, err = encodeGeoJSON(c)
	case FormatCSV:
		data, err = encodeFeatureCSV(c)
	default:
		return fmt.Errorf("joined table %s: %w %q", path, ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFile(path, data)
}

// WriteAggregates writes one or more aggregate series to a .json or .csv
// file.
func WriteAggregates(path string, series ...*aggregate.Series) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = encodeAggregatesJSON(series)
	case FormatCSV:
		data, err = encodeAggregatesCSV(series)
	default:
		return fmt.Errorf("aggregates %s: %w %q", path, ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFile(path, data)
}

func encodeGeoJSON(c *feature.Collection) ([]byte, error) {
	wgs, err := crs.FromEPSG(4326)
	if err != nil {
		return nil, err
	}
	out := c
	if c.CRS != nil {
		if out, err = c.ToCRS(wgs); err != nil {
			return nil, err
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range out.Features {
		if f.Geometry == nil {
			continue
		}
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		gf.Properties = geojson.Properties(f.Properties)
		fc.Append(gf)
	}
	return json.MarshalIndent(fc, "", "  ")
}

func encodeFeatureCSV(c *feature.Collection) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		header[i] = f.Name
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	row := make([]string, len(header))
	for _, f := range c.Features {
		for i, name := range header {
			row[i] = cell(f.Properties[name])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// aggregateDoc is the JSON shape of one series.
type aggregateDoc struct {
	Name  string           `json:"name"`
	Index []string         `json:"index"`
	DType string           `json:"dtype"`
	Total float64          `json:"total"`
	Rows  []map[string]any `json:"rows"`
}

func encodeAggregatesJSON(series []*aggregate.Series) ([]byte, error) {
	docs := make([]aggregateDoc, 0, len(series))
	for _, s := range series {
		doc := aggregateDoc{
			Name:  s.Name,
			Index: s.IndexNames,
			DType: s.DType,
			Total: s.Total(),
			Rows:  make([]map[string]any, 0, len(s.Rows)),
		}
		for _, r := range s.Rows {
			row := make(map[string]any, len(r.Keys)+1)
			for i, k := range r.Keys {
				row[s.IndexNames[i]] = k
			}
			row[s.Name] = value(s, r.Value)
			doc.Rows = append(doc.Rows, row)
		}
		docs = append(docs, doc)
	}
	return json.MarshalIndent(map[string]any{"aggregates": docs}, "", "  ")
}

// encodeAggregatesCSV writes every series into one long table. The "by"
// column names the grouping; index columns a series does not use are empty.
func encodeAggregatesCSV(series []*aggregate.Series) ([]byte, error) {
	var index []string
	seen := map[string]bool{}
	valueCol := ""
	for _, s := range series {
		for _, n := range s.IndexNames {
			if !seen[n] {
				seen[n] = true
				index = append(index, n)
			}
		}
		if valueCol == "" {
			valueCol = s.Name
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append(append([]string{"by"}, index...), valueCol)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, s := range series {
		by := strings.Join(s.IndexNames, "+")
		for _, r := range s.Rows {
			row := make([]string, len(header))
			row[0] = by
			for i, n := range s.IndexNames {
				row[1+indexOf(index, n)] = r.Keys[i]
			}
			row[len(row)-1] = cell(value(s, r.Value))
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func value(s *aggregate.Series, v float64) any {
	if s.DType == aggregate.Int64 {
		return int64(math.Round(v))
	}
	return v
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
