package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type named struct {
	name     string
	provides []string
	depends  []string
}

func (n named) Provides() []string  { return n.provides }
func (n named) DependsOn() []string { return n.depends }

func TestOrder(t *testing.T) {
	trace := named{name: `trace`, depends: []string{`mux`}}
	routes := named{name: `routes`, provides: []string{`mux`}}
	listen := named{name: `listen`}
	auth := named{name: `auth`, provides: []string{`mux`}, depends: []string{`listen`}}
	listen.provides = []string{`listen`}

	var names []string
	for _, it := range Order(trace, routes, listen, auth) {
		names = append(names, it.(named).name)
	}
	assert.Equal(t, []string{`routes`, `listen`, `auth`, `trace`}, names)

	// cycles are placed best effort rather than rejected
	a := named{name: `a`, provides: []string{`a`}, depends: []string{`b`}}
	b := named{name: `b`, provides: []string{`b`}, depends: []string{`a`}}
	assert.Len(t, Order(a, b, `plain`), 3)
}
