package protocol

import (
	"fmt"
	"sort"
)

// A Table is a named set of message types that one endpoint may send to the others.
type Table struct {
	name    string
	entries map[string]Entry
}

// NewTable builds a table, rejecting entries that reuse a name with a different shape.  Listing the same entry twice
// is harmless.
func NewTable(name string, entries ...Entry) (*Table, error) {
	t := &Table{name: name, entries: make(map[string]Entry, len(entries))}
	for _, entry := range entries {
		err := t.add(entry)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTable is like NewTable but panics on error; it is meant for package level tables.
func MustTable(name string, entries ...Entry) *Table {
	t, err := NewTable(name, entries...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) add(entry Entry) error {
	name := entry.MessageType()
	if name == `` {
		return fmt.Errorf(`%v: message type without a name`, t.name)
	}
	if prev, dup := t.entries[name]; dup && !Same(prev, entry) {
		return fmt.Errorf(`%v: %q is defined as both %v and %v`, t.name, name, describe(prev), describe(entry))
	}
	t.entries[name] = entry
	return nil
}

// Name returns the name of the table.
func (t *Table) Name() string { return t.name }

// Len returns the number of message types in the table.
func (t *Table) Len() int { return len(t.entries) }

// Lookup returns the entry for a message type.
func (t *Table) Lookup(messageType string) (Entry, bool) {
	entry, ok := t.entries[messageType]
	return entry, ok
}

// Has returns true if the table contains the message type.
func (t *Table) Has(messageType string) bool {
	_, ok := t.entries[messageType]
	return ok
}

// Contains returns true if the table contains the entry with the same shape.
func (t *Table) Contains(entry Entry) bool {
	prev, ok := t.entries[entry.MessageType()]
	return ok && Same(prev, entry)
}

// Names returns the message types in the table in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every message type listed in more than one table has the same shape in each of them.
func Validate(tables ...*Table) error {
	seen := make(map[string]Entry)
	owner := make(map[string]string)
	for _, t := range tables {
		for _, name := range t.Names() {
			entry := t.entries[name]
			prev, ok := seen[name]
			if !ok {
				seen[name], owner[name] = entry, t.name
				continue
			}
			if !Same(prev, entry) {
				return fmt.Errorf(`%q is %v in %v but %v in %v`,
					name, describe(prev), owner[name], describe(entry), t.name)
			}
		}
	}
	return nil
}

// Subset checks that every entry in a pass-through list belongs to the table.
func Subset(t *Table, entries []Entry) error {
	for _, entry := range entries {
		if !t.Contains(entry) {
			return fmt.Errorf(`%q is not part of %v`, entry.MessageType(), t.name)
		}
	}
	return nil
}

func describe(entry Entry) string {
	return fmt.Sprintf(`(%v) -> %v`, entry.RequestType(), entry.ResponseType())
}
