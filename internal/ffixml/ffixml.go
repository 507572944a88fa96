// Package ffixml flattens an FFI XML export into an entity map.
//
// An export is a root element whose children are entity records; the tag of
// each child names its entity and the grandchildren are the record's fields.
// Namespaces are dropped, GUID columns upper-cased, date and time columns
// rewritten in database.TimestampLayout, and empty fields become nil.
package ffixml

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/entity"
	"github.com/koustreak/ffiload/internal/errs"
)

// VersionTable and VersionColumn locate the export format version.
const (
	VersionTable  = "Schema_Version"
	VersionColumn = "Schema_Version"
)

// Options tunes normalisation.
type Options struct {
	// Location is the zone timestamps are rendered in. Values carrying an
	// offset are converted to it; zone-less values are taken as already in it.
	// Nil means time.Local.
	Location *time.Location
}

// Document is one flattened export.
type Document struct {
	Name     string
	Version  string
	Entities *entity.Map
}

// ParseFile reads and flattens the export at path.
func ParseFile(path string, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindNotFound, "open export", err)
	}
	defer f.Close()

	doc, err := Parse(f, opts)
	if err != nil {
		return nil, err
	}
	doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return doc, nil
}

// Parse flattens the export read from r.
func Parse(r io.Reader, opts Options) (*Document, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	dec := xml.NewDecoder(r)
	m := entity.NewMap()

	var (
		depth int
		table *entity.Table
		rec   entity.Record
		field string
		text  strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed export", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 2:
				table = m.Ensure(t.Name.Local)
				rec = entity.Record{}
			case 3:
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 3 {
				text.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 3:
				table.AddColumn(field)
				rec[field] = normalize(field, text.String(), loc)
			case 2:
				table.Append(rec)
				table, rec = nil, nil
			}
			depth--
		}
	}

	if depth != 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "malformed export: unexpected end of document")
	}

	return &Document{Version: version(m), Entities: m}, nil
}

func version(m *entity.Map) string {
	t, ok := m.Get(VersionTable)
	if !ok || t.Len() == 0 {
		return ""
	}
	if s, ok := t.Records[0][VersionColumn].(string); ok {
		return s
	}
	return ""
}

// normalize converts one field's text. Empty text is nil.
func normalize(column, raw string, loc *time.Location) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	switch {
	case strings.Contains(column, "_GUID"):
		return strings.ToUpper(s)
	case strings.Contains(column, "Date") || strings.Contains(column, "Time"):
		return Timestamp(s, loc)
	default:
		return s
	}
}

// Timestamp renders s in database.TimestampLayout and loc. Text that is not
// a timestamp is returned unchanged.
func Timestamp(s string, loc *time.Location) string {
	t, ok := database.ParseTimestamp(s, loc)
	if !ok {
		return s
	}
	return t.In(loc).Format(database.TimestampLayout)
}
