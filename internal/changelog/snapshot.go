package changelog

import (
	"strings"

	"github.com/lockplane/schemaclone/database"
)

// FromSchema returns a changelog that recreates the schema: one change set
// per table, then one per index, then one per foreign key, so every
// referenced table exists before a constraint names it.
func FromSchema(schema *database.Schema) *Document {
	doc := &Document{}

	for _, table := range schema.Tables {
		doc.ChangeSets = append(doc.ChangeSets, ChangeSet{
			ID:      "createTable-" + table.Name,
			Author:  DefaultAuthor,
			Changes: []Change{{CreateTable: createTableChange(schema, table)}},
		})
	}

	for _, table := range schema.Tables {
		for _, idx := range table.Indexes {
			cols := make([]Column, len(idx.Columns))
			for i, name := range idx.Columns {
				cols[i] = Column{Name: name}
			}
			doc.ChangeSets = append(doc.ChangeSets, ChangeSet{
				ID:     "createIndex-" + idx.Name,
				Author: DefaultAuthor,
				Changes: []Change{{CreateIndex: &CreateIndex{
					CatalogName: schema.Catalog,
					SchemaName:  schema.Name,
					TableName:   table.Name,
					IndexName:   idx.Name,
					Unique:      idx.Unique,
					Columns:     cols,
				}}},
			})
		}
	}

	for _, table := range schema.Tables {
		for _, fk := range table.ForeignKeys {
			change := &AddForeignKeyConstraint{
				CatalogName:           schema.Catalog,
				SchemaName:            schema.Name,
				ConstraintName:        fk.Name,
				BaseTableName:         table.Name,
				BaseColumnNames:       strings.Join(fk.Columns, ", "),
				ReferencedTableName:   fk.ReferencedTable,
				ReferencedColumnNames: strings.Join(fk.ReferencedColumns, ", "),
			}
			if fk.OnDelete != nil {
				change.OnDelete = *fk.OnDelete
			}
			if fk.OnUpdate != nil {
				change.OnUpdate = *fk.OnUpdate
			}
			doc.ChangeSets = append(doc.ChangeSets, ChangeSet{
				ID:      "addForeignKeyConstraint-" + table.Name + "-" + fk.Name,
				Author:  DefaultAuthor,
				Changes: []Change{{AddForeignKeyConstraint: change}},
			})
		}
	}

	return doc
}

func createTableChange(schema *database.Schema, table database.Table) *CreateTable {
	ct := &CreateTable{
		CatalogName: schema.Catalog,
		SchemaName:  schema.Name,
		TableName:   table.Name,
		Remarks:     table.Remarks,
	}
	for _, col := range table.Columns {
		nullable := col.Nullable
		c := Column{
			Name:                 col.Name,
			Type:                 col.Type,
			DefaultValueComputed: col.Default,
			Remarks:              col.Remarks,
			Constraints:          &Constraints{Nullable: &nullable},
		}
		if col.IsPrimaryKey {
			pk := true
			c.Constraints.PrimaryKey = &pk
		}
		ct.Columns = append(ct.Columns, c)
	}
	return ct
}

// Table converts a createTable change back to a table definition.
// Columns are nullable unless constrained otherwise.
func (t *CreateTable) Table() database.Table {
	table := database.Table{Name: t.TableName, Remarks: t.Remarks}
	for _, c := range t.Columns {
		col := database.Column{
			Name:     c.Name,
			Type:     c.Type,
			Nullable: true,
			Default:  c.DefaultValueComputed,
			Remarks:  c.Remarks,
		}
		if c.Constraints != nil {
			if c.Constraints.Nullable != nil {
				col.Nullable = *c.Constraints.Nullable
			}
			if c.Constraints.PrimaryKey != nil && *c.Constraints.PrimaryKey {
				col.IsPrimaryKey = true
				col.Nullable = false
			}
		}
		table.Columns = append(table.Columns, col)
	}
	return table
}

// Index converts a createIndex change back to an index definition
func (idx *CreateIndex) Index() database.Index {
	index := database.Index{Name: idx.IndexName, Unique: idx.Unique}
	for _, c := range idx.Columns {
		index.Columns = append(index.Columns, c.Name)
	}
	return index
}

// ForeignKey converts the change back to a foreign key definition
func (fk *AddForeignKeyConstraint) ForeignKey() database.ForeignKey {
	key := database.ForeignKey{
		Name:              fk.ConstraintName,
		Columns:           SplitColumnNames(fk.BaseColumnNames),
		ReferencedTable:   fk.ReferencedTableName,
		ReferencedColumns: SplitColumnNames(fk.ReferencedColumnNames),
	}
	if fk.OnDelete != "" {
		onDelete := fk.OnDelete
		key.OnDelete = &onDelete
	}
	if fk.OnUpdate != "" {
		onUpdate := fk.OnUpdate
		key.OnUpdate = &onUpdate
	}
	return key
}

// Tables returns the names of the tables the document creates, in order
func (d *Document) Tables() []string {
	var names []string
	for _, cs := range d.ChangeSets {
		for _, c := range cs.Changes {
			if c.CreateTable != nil {
				names = append(names, c.CreateTable.TableName)
			}
		}
	}
	return names
}
