package sqlite

import (
	"github.com/lockplane/schemaclone/database"
)

// Driver implements database.Driver for SQLite
type Driver struct {
	*Introspector
	*Generator
	dialect database.Dialect
}

// NewDriver creates a new SQLite driver
func NewDriver() *Driver {
	return &Driver{
		Introspector: NewIntrospector(),
		Generator:    NewGenerator(),
		dialect:      database.DialectSQLite,
	}
}

// NewLibSQLDriver creates a driver for libSQL, which speaks the SQLite dialect
func NewLibSQLDriver() *Driver {
	d := NewDriver()
	d.dialect = database.DialectLibSQL
	return d
}

// Name returns the database driver name
func (d *Driver) Name() string {
	return d.dialect.DriverName()
}

// Dialect returns the dialect the driver was created for
func (d *Driver) Dialect() database.Dialect {
	return d.dialect
}

// SupportsFeature checks if SQLite supports a specific feature
func (d *Driver) SupportsFeature(feature string) bool {
	switch feature {
	case database.FeatureSchemas:
		return false // One database per file; ATTACH is not used
	case database.FeatureAlterAddForeignKey:
		return false // Foreign keys must be defined at table creation
	case database.FeatureTableComments:
		return false
	case database.FeatureTransactionalDDL:
		return true
	default:
		return false
	}
}

// Ensure Driver implements database.Driver
var _ database.Driver = (*Driver)(nil)

// Ensure Introspector implements database.Introspector
var _ database.Introspector = (*Introspector)(nil)

// Ensure Generator implements database.SQLGenerator
var _ database.SQLGenerator = (*Generator)(nil)
