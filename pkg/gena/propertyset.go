package gena

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// ParsePropertySet extracts the changed variables from a propertyset event
// body, in document order. Each property element contributes its first
// child element: the local name is the variable name and its text is the
// value. Any malformed input yields an empty list.
func ParsePropertySet(body []byte) []upnp.Property {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var props []upnp.Property
	depth := 0
	inProperty := false
	rootSeen := false

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) && depth == 0 && rootSeen {
				return props
			}
			return nil
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 1:
				if t.Name.Local != "propertyset" {
					return nil
				}
				rootSeen = true
			case depth == 2:
				inProperty = t.Name.Local == "property"
			case depth == 3 && inProperty:
				var v struct {
					Value string `xml:",chardata"`
				}
				if err := dec.DecodeElement(&v, &t); err != nil {
					return nil
				}
				props = append(props, upnp.Property{Name: t.Name.Local, Value: strings.TrimSpace(v.Value)})
				depth--
			}
		case xml.EndElement:
			depth--
			if depth == 1 {
				inProperty = false
			}
		}
	}
}

// BuildPropertySet renders properties as a propertyset body.
func BuildPropertySet(props []upnp.Property) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0"?>`)
	b.WriteString(`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">`)
	for _, p := range props {
		b.WriteString("<e:property><")
		b.WriteString(p.Name)
		b.WriteString(">")
		_ = xml.EscapeText(&b, []byte(p.Value))
		b.WriteString("</")
		b.WriteString(p.Name)
		b.WriteString("></e:property>")
	}
	b.WriteString("</e:propertyset>")
	return b.Bytes()
}
