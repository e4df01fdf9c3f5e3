package pkg

import (
	"time"

	"gorm.io/gorm"

	"github.com/medilab/backend/internal/domain"
)

// MatchKind declares how a filter field is compared against its column.
type MatchKind int

const (
	// MatchExact compares with equality.
	MatchExact MatchKind = iota
	// MatchPartial compares with a case-sensitive LIKE '%value%'.
	MatchPartial
	// MatchDate parses the value against the filter's date layouts and
	// compares the first successfully parsed timestamp with equality.
	// If no layout parses, the constraint is omitted entirely.
	MatchDate
)

// FilterField maps a query parameter onto a column with a match kind.
type FilterField struct {
	Param  string
	Column string
	Match  MatchKind
}

// DateLayouts are the accepted timestamp formats for MatchDate fields,
// tried in order. Unparseable values drop the constraint instead of
// failing the request.
var DateLayouts = []string{
	"2006-01-02 15:04:05.00000",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FilterSet is a declarative filter table for one entity. It replaces the
// per-entity hand-written specification classes with a single builder: each
// present, non-empty parameter contributes one constraint of its declared
// kind, and all constraints are AND-combined.
type FilterSet struct {
	Fields []FilterField
	// Layouts overrides DateLayouts when non-nil.
	Layouts []string
}

// Scope builds a GORM scope from the request's filter values and tri-state
// deleted flag. It is a pure function of its inputs: the request is never
// mutated and repeated calls produce equivalent scopes.
//
// Absent or empty parameters contribute no constraint. When req.Deleted is
// nil the scope constrains to deleted = false; otherwise it constrains
// exactly on the given value. Zero filters therefore reduce to the deleted
// constraint alone.
func (fs FilterSet) Scope(req domain.PageRequest) func(db *gorm.DB) *gorm.DB {
	layouts := fs.Layouts
	if layouts == nil {
		layouts = DateLayouts
	}

	return func(db *gorm.DB) *gorm.DB {
		for _, f := range fs.Fields {
			value, ok := req.Filter[f.Param]
			if !ok || value == "" {
				continue
			}
			switch f.Match {
			case MatchExact:
				db = db.Where(f.Column+" = ?", value)
			case MatchPartial:
				db = db.Where(f.Column+" LIKE ?", "%"+value+"%")
			case MatchDate:
				if ts, ok := parseDate(value, layouts); ok {
					db = db.Where(f.Column+" = ?", ts)
				}
			}
		}

		if req.Deleted != nil {
			db = db.Where("deleted = ?", *req.Deleted)
		} else {
			db = db.Where("deleted = ?", false)
		}

		return db
	}
}

// AllowedParams returns the query parameter names the filter set accepts.
func (fs FilterSet) AllowedParams() []string {
	params := make([]string, 0, len(fs.Fields))
	for _, f := range fs.Fields {
		params = append(params, f.Param)
	}
	return params
}

// parseDate tries each layout in order and returns the first parse that
// succeeds.
func parseDate(value string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
