package plugins

import (
	"fmt"
	"strings"
)

func builtinOrdering() []OrderingPlugin {
	return []OrderingPlugin{
		&columnOrdering{},
		&fullnameOrdering{},
	}
}

// columnOrdering orders by a configured column and direction.
type columnOrdering struct{}

func (p *columnOrdering) Spec() Spec {
	return Spec{Name: "column", Kind: KindOrdering, FullName: "Order by column", Unique: true, RequireForm: true}
}

func (p *columnOrdering) HasSQL() bool { return true }

func (p *columnOrdering) Execute(form map[string]string) string {
	column := form["column"]
	if !safeIdent(column) {
		return ""
	}
	dir := "ASC"
	if strings.EqualFold(form["direction"], "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s", column, dir)
}

// fullnameOrdering orders user-shaped reports by last then first name.
type fullnameOrdering struct{}

func (p *fullnameOrdering) Spec() Spec {
	return Spec{
		Name:        "fullname",
		Kind:        KindOrdering,
		FullName:    "Order by full name",
		ReportTypes: []string{"users", "grades", "useractivities"},
		Unique:      true,
	}
}

func (p *fullnameOrdering) HasSQL() bool { return true }

func (p *fullnameOrdering) Execute(form map[string]string) string {
	dir := "ASC"
	if strings.EqualFold(form["direction"], "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf("lastname %s, firstname %s", dir, dir)
}
