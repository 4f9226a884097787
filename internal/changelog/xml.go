package changelog

import (
	"encoding/xml"
	"fmt"
)

// Namespace is the XML namespace of changelog documents
const Namespace = "http://www.liquibase.org/xml/ns/dbchangelog"

type xmlDocument struct {
	XMLName    xml.Name    `xml:"databaseChangeLog"`
	Xmlns      string      `xml:"xmlns,attr,omitempty"`
	ChangeSets []ChangeSet `xml:"changeSet"`
}

// MarshalXML writes the change set attributes followed by its changes in
// order, each as an element named after its change type
func (cs ChangeSet) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Attr = []xml.Attr{
		{Name: xml.Name{Local: "id"}, Value: cs.ID},
		{Name: xml.Name{Local: "author"}, Value: cs.Author},
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if cs.Comment != "" {
		if err := e.EncodeElement(cs.Comment, xml.StartElement{Name: xml.Name{Local: "comment"}}); err != nil {
			return err
		}
	}

	for i, c := range cs.Changes {
		el := xml.StartElement{Name: xml.Name{Local: c.Kind()}}
		var err error
		switch {
		case c.CreateTable != nil:
			err = e.EncodeElement(c.CreateTable, el)
		case c.CreateIndex != nil:
			err = e.EncodeElement(c.CreateIndex, el)
		case c.AddForeignKeyConstraint != nil:
			err = e.EncodeElement(c.AddForeignKeyConstraint, el)
		case c.SQL != nil:
			err = e.EncodeElement(c.SQL, el)
		default:
			err = fmt.Errorf("change set %s: change %d is empty", cs.ID, i)
		}
		if err != nil {
			return err
		}
	}

	return e.EncodeToken(start.End())
}

// UnmarshalXML reads a changeSet element, keeping the order of its changes
func (cs *ChangeSet) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			cs.ID = attr.Value
		case "author":
			cs.Author = attr.Value
		}
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var c Change
			switch t.Name.Local {
			case "comment":
				if err := d.DecodeElement(&cs.Comment, &t); err != nil {
					return err
				}
				continue
			case "createTable":
				c.CreateTable = &CreateTable{}
				err = d.DecodeElement(c.CreateTable, &t)
			case "createIndex":
				c.CreateIndex = &CreateIndex{}
				err = d.DecodeElement(c.CreateIndex, &t)
			case "addForeignKeyConstraint":
				c.AddForeignKeyConstraint = &AddForeignKeyConstraint{}
				err = d.DecodeElement(c.AddForeignKeyConstraint, &t)
			case "sql":
				c.SQL = &SQL{}
				err = d.DecodeElement(c.SQL, &t)
			default:
				return fmt.Errorf("change set %s: unsupported change type %q", cs.ID, t.Name.Local)
			}
			if err != nil {
				return err
			}
			cs.Changes = append(cs.Changes, c)
		case xml.EndElement:
			return nil
		}
	}
}
