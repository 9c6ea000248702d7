package runner

import "fmt"

// TypeDef describes one report type: its base query, the basic params it
// requires, and how course-scope restrictions attach to it. The base query
// always ends in a WHERE clause so predicate fragments append as "AND ...".
type TypeDef struct {
	Name           string
	BaseSQL        string
	DefaultColumns []string
	SortColumns    []string          // request-level sort allow-list
	RequiredParams []string          // basic params, e.g. userid
	ParamColumns   map[string]string // basic param -> column
	SearchColumns  []string
	DefaultOrder   string
	SuppressOrder  bool   // session-style reports manage ordering internally
	CourseRestrict string // fragment with IN (?) over permitted course ids
	IDColumn       string // record identifier conditions select on
}

var reportTypes = map[string]TypeDef{
	"users": {
		Name: "users",
		BaseSQL: `SELECT u.id AS id, u.firstname, u.lastname, u.email, u.status, u.timecreated
			 FROM users u WHERE u.deleted = false`,
		DefaultColumns: []string{"id", "firstname", "lastname", "email", "status"},
		SortColumns:    []string{"id", "firstname", "lastname", "email", "status", "timecreated"},
		SearchColumns:  []string{"u.firstname", "u.lastname", "u.email"},
		DefaultOrder:   "u.id DESC",
		CourseRestrict: `AND u.id IN (SELECT e.userid FROM enrolments e WHERE e.courseid IN (?))`,
		IDColumn:       "u.id",
	},
	"courses": {
		Name: "courses",
		BaseSQL: `SELECT c.id AS id, c.fullname, c.shortname, c.category, c.visible, c.timecreated
			 FROM courses c WHERE 1 = 1`,
		DefaultColumns: []string{"id", "fullname", "shortname", "category", "visible"},
		SortColumns:    []string{"id", "fullname", "shortname", "category", "timecreated"},
		SearchColumns:  []string{"c.fullname", "c.shortname"},
		DefaultOrder:   "c.id DESC",
		CourseRestrict: `AND c.id IN (?)`,
		IDColumn:       "c.id",
	},
	"activities": {
		Name: "activities",
		BaseSQL: `SELECT a.id AS id, a.name, a.module, a.courseid, a.visible, a.timecreated
			 FROM activities a WHERE 1 = 1`,
		DefaultColumns: []string{"id", "name", "module", "courseid", "visible"},
		SortColumns:    []string{"id", "name", "module", "courseid", "timecreated"},
		SearchColumns:  []string{"a.name", "a.module"},
		DefaultOrder:   "a.id DESC",
		CourseRestrict: `AND a.courseid IN (?)`,
		IDColumn:       "a.id",
	},
	"grades": {
		Name: "grades",
		BaseSQL: `SELECT g.id AS id, u.firstname, u.lastname, g.courseid, g.finalgrade, g.timemodified
			 FROM grades g JOIN users u ON u.id = g.userid WHERE 1 = 1`,
		DefaultColumns: []string{"id", "firstname", "lastname", "courseid", "finalgrade"},
		SortColumns:    []string{"id", "firstname", "lastname", "courseid", "finalgrade", "timemodified"},
		SearchColumns:  []string{"u.firstname", "u.lastname"},
		DefaultOrder:   "g.id DESC",
		CourseRestrict: `AND g.courseid IN (?)`,
		IDColumn:       "g.id",
	},
	// Per-user session report; ordering is managed by the report itself.
	"useractivities": {
		Name: "useractivities",
		BaseSQL: `SELECT s.id AS id, u.firstname, u.lastname, s.courseid, s.timespent, s.timestart
			 FROM user_sessions s JOIN users u ON u.id = s.userid WHERE 1 = 1`,
		DefaultColumns: []string{"id", "firstname", "lastname", "courseid", "timespent"},
		SortColumns:    []string{"id", "courseid", "timespent", "timestart"},
		RequiredParams: []string{"userid"},
		ParamColumns:   map[string]string{"userid": "s.userid"},
		SearchColumns:  []string{"u.firstname", "u.lastname"},
		SuppressOrder:  true,
		CourseRestrict: `AND s.courseid IN (?)`,
		IDColumn:       "s.id",
	},
}

// TypeFor resolves a report type name; unknown names are configuration errors.
func TypeFor(name string) (TypeDef, error) {
	def, ok := reportTypes[name]
	if !ok {
		return TypeDef{}, fmt.Errorf("unknown report type %q", name)
	}
	return def, nil
}

// TypeNames lists the registered report types.
func TypeNames() []string {
	names := make([]string, 0, len(reportTypes))
	for name := range reportTypes {
		names = append(names, name)
	}
	return names
}
