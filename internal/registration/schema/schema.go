// Package schema declares the registrations table as an ordered list of additive
// versions. Nothing here touches a database; dialect adapters in the migrate
// package turn the catalog into DDL.
package schema

// Table is the registrations table name.
const Table = "registrations"

// VersionTable holds the informational applied-version marker.
const VersionTable = "schema_versions"

// Physical column names. Version 1 columns are camelCase and later ones are
// snake_case; databases created by earlier releases carry exactly these names.
const (
	ColID                = "id"
	ColReferenceNumber   = "referenceNumber"
	ColFormType          = "formType"
	ColFormTypeOtherText = "formTypeOtherText"
	ColPenColourNotUsed  = "penColourNotUsed"
	ColGuidanceRead      = "guidanceRead"
	ColCreatedAt         = "createdAt"
	ColReceiptPreference = "receipt_preference"
	ColEmailAddress      = "email_address"
	ColMobilePhoneNumber = "mobile_phone_number"
)

// ReferenceIndex enforces reference code uniqueness at the storage layer.
const ReferenceIndex = "registrations_reference_number_key"

// ColumnType is a logical type; each dialect maps it to its own SQL type.
type ColumnType int

const (
	Text ColumnType = iota
	Timestamp
)

// Column describes one physical column.
type Column struct {
	Name       string
	Type       ColumnType
	NotNull    bool
	PrimaryKey bool
	// DefaultNow sets the column default to the database's current timestamp.
	DefaultNow bool
}

// Index describes a secondary index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Version is one additive step. Steps only ever add columns or indexes.
type Version struct {
	Number      int
	Description string
	Columns     []Column
	Indexes     []Index
}

// Catalog is the ordered list of versions. Append only.
var Catalog = []Version{
	{
		Number:      1,
		Description: "registrations table",
		Columns: []Column{
			{Name: ColID, Type: Text, PrimaryKey: true},
			{Name: ColReferenceNumber, Type: Text, NotNull: true},
			{Name: ColFormType, Type: Text, NotNull: true},
			{Name: ColFormTypeOtherText, Type: Text},
			{Name: ColPenColourNotUsed, Type: Text, NotNull: true},
			{Name: ColGuidanceRead, Type: Text, NotNull: true},
			{Name: ColCreatedAt, Type: Timestamp, DefaultNow: true},
		},
	},
	{
		Number:      2,
		Description: "receipt preference and contact details",
		Columns: []Column{
			{Name: ColReceiptPreference, Type: Text},
			{Name: ColEmailAddress, Type: Text},
			{Name: ColMobilePhoneNumber, Type: Text},
		},
	},
	{
		Number:      3,
		Description: "unique reference numbers",
		Indexes: []Index{
			{Name: ReferenceIndex, Columns: []string{ColReferenceNumber}, Unique: true},
		},
	},
}

// Latest returns the highest declared version number.
func Latest() int {
	return Catalog[len(Catalog)-1].Number
}

// BaseColumns are the columns the table is created with.
func BaseColumns() []Column {
	return Catalog[0].Columns
}

// Columns returns every declared column in catalog order.
func Columns() []Column {
	var cols []Column
	for _, v := range Catalog {
		cols = append(cols, v.Columns...)
	}
	return cols
}

// Indexes returns every declared index in catalog order.
func Indexes() []Index {
	var idx []Index
	for _, v := range Catalog {
		idx = append(idx, v.Indexes...)
	}
	return idx
}
