package pivot

import (
	"strings"

	"github.com/google/uuid"
	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/entity"
)

// Source tables consumed by Expand. They never reach the store.
const (
	TableAttributeRow  = "AttributeRow"
	TableAttributeData = "AttributeData"
	TableSampleRow     = "SampleRow"
	TableSampleData    = "SampleData"

	tableMethodAttribute = "MethodAttribute"
	tableSampleAttribute = "SampleAttribute"
	tableMethod          = "Method"
)

// sampleNamespace seeds SampleData_Original_GUID so re-imports of one file
// produce the same identifiers.
var sampleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:ffiload:SampleData_Original_GUID"))

// longRecord is one (subject, field, value) triple tagged with its method
// and unit system.
type longRecord struct {
	key    []any
	method string
	unit   any
	field  string
	value  any
}

// kind describes one long-format entity and how it joins to its lookups.
type kind struct {
	suffix string
	keys   []string
	audit  []string // source audit columns, synthesised as nil when absent
	source string   // table carrying the audit columns
	build  func(m *entity.Map) []longRecord
}

var attributeKind = kind{
	suffix: "Attribute",
	keys: []string{
		"AttributeData_DataRow_GUID", "AttributeData_SampleRow_GUID",
		"AttributeData_CreatedBy", "AttributeData_CreatedDate",
		"AttributeData_ModifiedBy", "AttributeData_ModifiedDate",
	},
	audit: []string{
		"AttributeRow_CreatedBy", "AttributeRow_CreatedDate",
		"AttributeRow_ModifiedBy", "AttributeRow_ModifiedDate",
	},
	source: TableAttributeRow,
	build:  buildAttributeLong,
}

var sampleKind = kind{
	suffix: "Sample",
	keys: []string{
		"SampleData_SampleRow_GUID", "SampleData_SampleEvent_GUID", "SampleData_Original_GUID",
		"SampleData_CreatedBy", "SampleData_CreatedDate",
		"SampleData_ModifiedBy", "SampleData_ModifiedDate",
	},
	audit: []string{
		"SampleRow_CreatedBy", "SampleRow_CreatedDate",
		"SampleRow_ModifiedBy", "SampleRow_ModifiedDate",
	},
	source: TableSampleRow,
	build:  buildSampleLong,
}

// buildAttributeLong joins AttributeRow to AttributeData, then left-joins
// MethodAttribute, Method and SampleRow. Rows without data yield nothing.
func buildAttributeLong(m *entity.Map) []longRecord {
	rows := records(m, TableAttributeRow)
	data := indexMany(m, TableAttributeData, "AttributeData_DataRow_ID")
	fields := indexOne(m, tableMethodAttribute, "MethodAtt_ID")
	methods := indexOne(m, tableMethod, "Method_GUID")
	samples := indexOne(m, TableSampleRow, "SampleRow_ID")

	var out []longRecord
	for _, r := range rows {
		for _, d := range many(data, r["AttributeRow_ID"]) {
			ma := one(fields, d["AttributeData_MethodAtt_ID"])
			meth := one(methods, ma["MethodAtt_Method_GUID"])
			sr := one(samples, d["AttributeData_SampleRow_ID"])

			out = append(out, longRecord{
				key: []any{
					r["AttributeRow_DataRow_GUID"], sr["SampleRow_Original_GUID"],
					r["AttributeRow_CreatedBy"], r["AttributeRow_CreatedDate"],
					r["AttributeRow_ModifiedBy"], r["AttributeRow_ModifiedDate"],
				},
				method: text(meth["Method_Name"]),
				unit:   meth["Method_UnitSystem"],
				field:  text(ma["MethodAtt_FieldName"]),
				value:  d["AttributeData_Value"],
			})
		}
	}
	return out
}

// buildSampleLong joins SampleRow to SampleData, then left-joins
// SampleAttribute and Method.
func buildSampleLong(m *entity.Map) []longRecord {
	rows := records(m, TableSampleRow)
	data := indexMany(m, TableSampleData, "SampleData_SampleRow_ID")
	fields := indexOne(m, tableSampleAttribute, "SampleAtt_ID")
	methods := indexOne(m, tableMethod, "Method_GUID")

	var out []longRecord
	for _, r := range rows {
		for _, d := range many(data, r["SampleRow_ID"]) {
			sa := one(fields, d["SampleData_SampleAtt_ID"])
			meth := one(methods, sa["SampleAtt_Method_GUID"])
			method := text(meth["Method_Name"])

			rowGUID := r["SampleRow_Original_GUID"]
			eventGUID := d["SampleData_SampleEvent_GUID"]
			out = append(out, longRecord{
				key: []any{
					rowGUID, eventGUID,
					sampleGUID(method, rowGUID, eventGUID, meth["Method_UnitSystem"]),
					r["SampleRow_CreatedBy"], r["SampleRow_CreatedDate"],
					r["SampleRow_ModifiedBy"], r["SampleRow_ModifiedDate"],
				},
				method: method,
				unit:   meth["Method_UnitSystem"],
				field:  text(sa["SampleAtt_FieldName"]),
				value:  d["SampleData_Value"],
			})
		}
	}
	return out
}

func sampleGUID(method string, row, event, unit any) string {
	name := strings.Join([]string{
		method, database.KeyString(row), database.KeyString(event), database.KeyString(unit),
	}, "|")
	return strings.ToUpper(uuid.NewSHA1(sampleNamespace, []byte(name)).String())
}

func records(m *entity.Map, table string) []entity.Record {
	if t, ok := m.Get(table); ok {
		return t.Records
	}
	return nil
}

// indexOne maps the canonical value of col to the first record carrying it.
func indexOne(m *entity.Map, table, col string) map[string]entity.Record {
	idx := map[string]entity.Record{}
	for _, r := range records(m, table) {
		if r[col] == nil {
			continue
		}
		k := database.KeyString(r[col])
		if _, seen := idx[k]; !seen {
			idx[k] = r
		}
	}
	return idx
}

// indexMany maps the canonical value of col to every record carrying it,
// in file order.
func indexMany(m *entity.Map, table, col string) map[string][]entity.Record {
	idx := map[string][]entity.Record{}
	for _, r := range records(m, table) {
		if r[col] == nil {
			continue
		}
		k := database.KeyString(r[col])
		idx[k] = append(idx[k], r)
	}
	return idx
}

// one looks up a single joined record; a nil key joins nothing.
func one(idx map[string]entity.Record, v any) entity.Record {
	if v == nil {
		return nil
	}
	return idx[database.KeyString(v)]
}

func many(idx map[string][]entity.Record, v any) []entity.Record {
	if v == nil {
		return nil
	}
	return idx[database.KeyString(v)]
}

func text(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return database.KeyString(v)
}
