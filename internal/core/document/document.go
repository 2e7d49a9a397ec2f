package document

import (
	"fmt"
	"strings"
)

type Field struct {
	Key   string
	Value string
}

// Section é um grupo [Nome] do INI do ACBr.
type Section struct {
	Name   string
	Fields []Field
}

func (s *Section) Set(key, value string) {
	s.Fields = append(s.Fields, Field{Key: key, Value: value})
}

// SetIf só grava o campo quando o valor não é vazio.
func (s *Section) SetIf(key, value string) {
	if value != "" {
		s.Set(key, value)
	}
}

// Get devolve o primeiro valor da chave.
func (s Section) Get(key string) (string, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func (s Section) write(sb *strings.Builder) {
	fmt.Fprintf(sb, "[%s]\n", s.Name)
	for _, f := range s.Fields {
		fmt.Fprintf(sb, "%s=%s\n", f.Key, f.Value)
	}
	sb.WriteString("\n")
}

// Item agrupa o produto e seus três subgrupos de tributos.
type Item struct {
	Product Section
	ICMS    Section
	PIS     Section
	COFINS  Section
}

// Document é a NFC-e em memória, na ordem em que o ACBrMonitor espera os grupos.
type Document struct {
	InfNFe          Section
	Identification  Section
	Emitter         Section
	Recipient       *Section
	Items           []Item
	Total           Section
	Transport       Section
	Payments        []Section
	Additional      Section
	TechResponsible *Section
}

// Sections lista os grupos na ordem de serialização.
func (d *Document) Sections() []Section {
	out := []Section{d.InfNFe, d.Identification, d.Emitter}
	if d.Recipient != nil {
		out = append(out, *d.Recipient)
	}
	for _, it := range d.Items {
		out = append(out, it.Product, it.ICMS, it.PIS, it.COFINS)
	}
	out = append(out, d.Total, d.Transport)
	out = append(out, d.Payments...)
	out = append(out, d.Additional)
	if d.TechResponsible != nil {
		out = append(out, *d.TechResponsible)
	}
	return out
}

// String serializa o documento no formato INI.
func (d *Document) String() string {
	var sb strings.Builder
	for _, s := range d.Sections() {
		s.write(&sb)
	}
	return sb.String()
}
