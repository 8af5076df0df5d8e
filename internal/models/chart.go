package models

// Chart-ready records handed to the presentation layer.

// DayCount is one bar of the actions-by-day chart. Date is rendered D-M-YYYY.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TimeOfDayCount is one bar of the actions-by-time-of-day chart.
type TimeOfDayCount struct {
	TimeOfDay string `json:"timeOfDay"`
	Count     int    `json:"count"`
}

// VerbShare is one slice of the verb distribution chart.
type VerbShare struct {
	Verb       string  `json:"verb"`
	Percentage float64 `json:"percentage"`
}

// RankedItem is an accessed item with its access count.
type RankedItem struct {
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
	Category    string `json:"category"`
}

// SelectOption is a name/value pair for selector widgets.
type SelectOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PointFeature is a located action, ready for spatial clustering.
type PointFeature struct {
	ID  string  `json:"id"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}
