package models

// HistoryRow is one pivoted point in a node's history: one timestamp with
// all five sensor fields as columns.
type HistoryRow struct {
	Time        string  `json:"time"`
	NodeID      string  `json:"node_id"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Power       float64 `json:"power"`
	PowerFactor float64 `json:"power_factor"`
	Frequency   float64 `json:"frequency"`
}

// HistoryPage is one page of a node's history, most recent first.
type HistoryPage struct {
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Data  []HistoryRow `json:"data"`
}

// NodeStatus is the latest reported sample of one node.
type NodeStatus struct {
	NodeID  string  `json:"node_id"`
	Power   float64 `json:"power"`
	Voltage float64 `json:"voltage"`
	Time    string  `json:"time"`
}

// CampusSummaryResponse is the instantaneous power sum across all nodes.
type CampusSummaryResponse struct {
	TotalPower float64 `json:"total_power"`
}

// CostSummaryResponse projects energy cost over the three trailing windows.
type CostSummaryResponse struct {
	Daily   float64 `json:"daily"`
	Weekly  float64 `json:"weekly"`
	Monthly float64 `json:"monthly"`
}
