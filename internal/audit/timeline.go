package audit

import "time"

// TimelineFilters holds the audit timeline filters.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Module   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit entry as shown on the timeline.
type TimelineRow struct {
	At        time.Time
	Action    string
	Module    string
	SubModule string
	ActorID   string
	Actor     string
	Details   map[string]any
}

// PagingInfo holds simple look-ahead pagination metadata.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// FiltersViewModel holds filter values for the template.
type FiltersViewModel struct {
	From   time.Time
	To     time.Time
	Actor  string
	Module string
	Action string
}

// ViewModel combines the data for the audit timeline template.
type ViewModel struct {
	Filters FiltersViewModel
	Rows    []TimelineRow
	Paging  PagingInfo
	Modules []string
	Actions []string
}
