package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapType_Precise(t *testing.T) {
	tests := []struct {
		native string
		want   PortableType
	}{
		{"NUMBER", Number},
		{"BINARY_DOUBLE", Number},
		{"int4", Number},
		{"numeric(10,2)", Number},
		{"UNSIGNED BIGINT", Number},
		{"INT_TYPE", Number},
		{"DATE", Date},
		{"TIMESTAMP", Date},
		{"TIMESTAMP(6) WITH TIME ZONE", Date},
		{"timestamptz", Date},
		{"INTERVAL DAY(2) TO SECOND(6)", Date},
		{"DATETIME", Date},
		{"VARCHAR2", String},
		{"varchar(255)", String},
		{"NVARCHAR2", String},
		{"JSON", String},
		{"jsonb", String},
		{"XMLTYPE", String},
		{"STRING_TYPE", String},
		{"BOOLEAN", Boolean},
		{"bool", Boolean},
		{"IntervalYM", Date},
		{"IntervalDS", Date},
		{"TimeStampeLTZ", Date},
		{"TimeStampLTZ_DTY", Date},
		{"TimeTZ", Date},
		{"OCIDate", Date},
		{"time", Date},
		{"timetz", Date},
		{"TIME(3)", Date},
		{"TNSType(119)", String},
		{"TNSType(252)", Boolean},
		{"BFloat", Number},
		{"CHARZ", String},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			got, fidelity := MapType(tt.native)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Precise, fidelity)
		})
	}
}

func TestMapType_Fallback(t *testing.T) {
	for _, native := range []string{
		"", "CLOB", "NCLOB", "BLOB", "BFILE", "LONG", "LONG RAW", "RAW",
		"ROWID", "UROWID", "REF CURSOR", "VECTOR", "OBJECT", "bytea", "_int4",
		"geometry", "something-new", "TNSType(116)", "TNSType(999)",
	} {
		got, fidelity := MapType(native)
		assert.Equal(t, String, got, native)
		assert.Equal(t, Inferred, fidelity, native)
	}
}

func TestDescribe(t *testing.T) {
	cols := Describe([]Native{
		{Name: "NUMBER_COL", DatabaseType: "NUMBER"},
		{Name: "Date_Col", DatabaseType: "DATE"},
		{Name: "timestamp_col", DatabaseType: "TIMESTAMP"},
		{Name: "STRING_COL", DatabaseType: "CHAR"},
		{Name: "LOB_COL", DatabaseType: "CLOB"},
	})

	assert.Equal(t, []ColumnType{
		{Name: "number_col", Type: Number, Fidelity: Precise},
		{Name: "date_col", Type: Date, Fidelity: Precise},
		{Name: "timestamp_col", Type: Date, Fidelity: Precise},
		{Name: "string_col", Type: String, Fidelity: Precise},
		{Name: "lob_col", Type: String, Fidelity: Inferred},
	}, cols)
	assert.Equal(t, []string{"number_col", "date_col", "timestamp_col", "string_col", "lob_col"}, Names(cols))
}

func TestDescribe_Empty(t *testing.T) {
	assert.Empty(t, Describe(nil))
}
