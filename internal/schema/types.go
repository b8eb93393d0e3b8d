// Package schema maps native column type descriptors onto the small portable
// type system consumed by the host.
package schema

import "strings"

// PortableType is the coarse value category of a result column.
type PortableType string

const (
	Number  PortableType = "number"
	String  PortableType = "string"
	Date    PortableType = "date"
	Boolean PortableType = "boolean"
)

// Fidelity tells whether a PortableType comes from an explicit mapping
// (Precise) or from the STRING fallback (Inferred).
type Fidelity string

const (
	Precise  Fidelity = "precise"
	Inferred Fidelity = "inferred"
)

// ColumnType describes one result column. Name is always lowercase.
type ColumnType struct {
	Name     string       `json:"name"`
	Type     PortableType `json:"evidenceType"`
	Fidelity Fidelity     `json:"typeFidelity"`
}

// Native is a result column as reported by a backend cursor.
type Native struct {
	Name string
	// DatabaseType is the vendor type tag, e.g. "NUMBER", "int4", "VARCHAR2(20)".
	DatabaseType string
}

// nativeTypes lists every native tag with a documented mapping. Tags are
// stored in normalized form (see normalize). Large objects, cursors, row
// identifiers, raw/binary, vectors and anything else are absent on purpose
// and resolve to the inferred STRING fallback.
var nativeTypes = map[string]PortableType{
	// oracle
	"NUMBER":                         Number,
	"BINARY_DOUBLE":                  Number,
	"BINARY_FLOAT":                   Number,
	"BINARY_INTEGER":                 Number,
	"IBDOUBLE":                       Number,
	"IBFLOAT":                        Number,
	"BDOUBLE":                        Number,
	"BFLOAT":                         Number,
	"DATE":                           Date,
	"TIMESTAMP":                      Date,
	"TIMESTAMP WITH TIME ZONE":       Date,
	"TIMESTAMP WITH LOCAL TIME ZONE": Date,
	"TIMESTAMPDTY":                   Date,
	"TIMESTAMPTZ_DTY":                Date,
	"TIMESTAMPLTZ_DTY":               Date,
	"INTERVAL DAY TO SECOND":         Date,
	"INTERVAL YEAR TO MONTH":         Date,
	"INTERVALDS_DTY":                 Date,
	"INTERVALYM_DTY":                 Date,
	"INTERVALDS":                     Date,
	"INTERVALYM":                     Date,
	"TIMESTAMPELTZ":                  Date,
	"TIMETZ":                         Date,
	"OCIDATE":                        Date,
	"CHAR":                           String,
	"NCHAR":                          String,
	"VARCHAR":                        String,
	"VARCHAR2":                       String,
	"NVARCHAR":                       String,
	"NVARCHAR2":                      String,
	"CHARZ":                          String,
	"OCISTRING":                      String,
	"XMLTYPE":                        String,
	"JSON":                           String,
	"BOOLEAN":                        Boolean,

	// postgres
	"INT2":                        Number,
	"INT4":                        Number,
	"INT8":                        Number,
	"SMALLINT":                    Number,
	"INTEGER":                     Number,
	"BIGINT":                      Number,
	"SERIAL":                      Number,
	"BIGSERIAL":                   Number,
	"FLOAT4":                      Number,
	"FLOAT8":                      Number,
	"REAL":                        Number,
	"DOUBLE PRECISION":            Number,
	"NUMERIC":                     Number,
	"DECIMAL":                     Number,
	"MONEY":                       Number,
	"TIMESTAMPTZ":                 Date,
	"TIMESTAMP WITHOUT TIME ZONE": Date,
	"INTERVAL":                    Date,
	"TIME":                        Date,
	"TEXT":                        String,
	"BPCHAR":                      String,
	"CHARACTER":                   String,
	"CHARACTER VARYING":           String,
	"NAME":                        String,
	"CITEXT":                      String,
	"UUID":                        String,
	"JSONB":                       String,
	"XML":                         String,
	"BOOL":                        Boolean,

	// mysql
	"TINYINT":    Number,
	"MEDIUMINT":  Number,
	"INT":        Number,
	"FLOAT":      Number,
	"DOUBLE":     Number,
	"YEAR":       Number,
	"DATETIME":   Date,
	"TINYTEXT":   String,
	"MEDIUMTEXT": String,
	"LONGTEXT":   String,
	"ENUM":       String,
	"SET":        String,

	// hive
	"STRING": String,
}

// tnsCodes covers oracle types go-ora has no name for. It reports them by
// wire code as "TNSType(n)".
var tnsCodes = map[string]PortableType{
	"TNSTYPE(119)": String,  // JSON
	"TNSTYPE(252)": Boolean, // BOOLEAN
}

// MapType resolves a native type tag. Unknown tags fall back to
// (String, Inferred), so every input yields a result.
func MapType(native string) (PortableType, Fidelity) {
	if t, ok := tnsCodes[strings.ToUpper(strings.TrimSpace(native))]; ok {
		return t, Precise
	}
	if t, ok := nativeTypes[normalize(native)]; ok {
		return t, Precise
	}
	return String, Inferred
}

// Describe builds the column types of a result, preserving column order.
func Describe(cols []Native) []ColumnType {
	out := make([]ColumnType, len(cols))
	for i, c := range cols {
		t, f := MapType(c.DatabaseType)
		out[i] = ColumnType{
			Name:     strings.ToLower(c.Name),
			Type:     t,
			Fidelity: f,
		}
	}
	return out
}

// Names returns the column names in result order.
func Names(cols []ColumnType) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// normalize upper-cases a tag and strips length/precision arguments, the
// UNSIGNED modifier and hive's _TYPE suffix.
func normalize(native string) string {
	t := strings.ToUpper(strings.TrimSpace(native))
	for {
		i := strings.IndexByte(t, '(')
		if i < 0 {
			break
		}
		rest := ""
		if j := strings.IndexByte(t[i:], ')'); j >= 0 {
			rest = t[i+j+1:]
		}
		t = t[:i] + rest
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	t = strings.TrimSuffix(t, " UNSIGNED")
	t = strings.TrimSuffix(t, "_TYPE")
	return strings.Join(strings.Fields(t), " ")
}
