package audit

import "time"

// TimelineFilters narrows the audit timeline for one account.
type TimelineFilters struct {
	AccountID int64
	From      time.Time
	To        time.Time
	ActorID   int64
	Entity    string
	EntityID  string
	Action    string
	Page      int
	PageSize  int
}

// PagingInfo carries simple next/prev paging metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"has_next"`
	PageSize int  `json:"page_size"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps one page of timeline entries.
type Result struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}
