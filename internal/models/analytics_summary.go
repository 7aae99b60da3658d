package models

// AnalyticsSummary - сводка по инцидентам для панели администратора
type AnalyticsSummary struct {
	TotalIncidents  int            `json:"total_incidents"`
	RecentIncidents int            `json:"recent_incidents"`
	ByCategory      map[string]int `json:"by_category"`
	ByPriority      map[string]int `json:"by_priority"`
	ByStatus        map[string]int `json:"by_status"`
}
