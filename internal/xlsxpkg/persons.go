package xlsxpkg

import (
	"encoding/xml"
	"fmt"
)

// Person is one entry of the workbook-level participant directory. Threaded
// comments point at entries here through their personId attribute.
type Person struct {
	ID          string
	DisplayName string
	UserID      string
	ProviderID  string
}

type xmlPerson struct {
	DisplayName string `xml:"displayName,attr"`
	ID          string `xml:"id,attr"`
	UserID      string `xml:"userId,attr,omitempty"`
	ProviderID  string `xml:"providerId,attr,omitempty"`
}

type xmlPersonList struct {
	XMLName xml.Name    `xml:"http://schemas.microsoft.com/office/spreadsheetml/2018/threadedcomments personList"`
	Persons []xmlPerson `xml:"person"`
}

func marshalPersons(persons []Person) ([]byte, error) {
	doc := xmlPersonList{}
	for _, p := range persons {
		doc.Persons = append(doc.Persons, xmlPerson{
			DisplayName: p.DisplayName,
			ID:          p.ID,
			UserID:      p.UserID,
			ProviderID:  p.ProviderID,
		})
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal person list: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func parsePersons(data []byte) ([]Person, error) {
	var doc xmlPersonList
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse person list part: %w", err)
	}
	out := make([]Person, 0, len(doc.Persons))
	for _, p := range doc.Persons {
		out = append(out, Person{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			UserID:      p.UserID,
			ProviderID:  p.ProviderID,
		})
	}
	return out, nil
}
