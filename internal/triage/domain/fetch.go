package domain

const (
	DefaultFetchMaxResults    = 10
	DefaultFetchLookbackHours = 48
)

// FetchOptions narrows a mailbox fetch
type FetchOptions struct {
	MaxResults    int      `json:"max_results"`
	LookbackHours int      `json:"lookback_hours"`
	OnlyUnread    *bool    `json:"only_unread,omitempty"`
	QueryTerms    []string `json:"query_terms,omitempty"`
}

// WithDefaults fills unset fields: 10 results, a 48 hour window and unread only
func (o FetchOptions) WithDefaults() FetchOptions {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultFetchMaxResults
	}
	if o.LookbackHours <= 0 {
		o.LookbackHours = DefaultFetchLookbackHours
	}
	if o.OnlyUnread == nil {
		unread := true
		o.OnlyUnread = &unread
	}
	return o
}

// Unread reports whether only unread messages should be fetched
func (o FetchOptions) Unread() bool {
	return o.OnlyUnread == nil || *o.OnlyUnread
}
