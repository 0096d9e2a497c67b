package store

// Stats contains aggregate database statistics.
type Stats struct {
	TotalCampaigns    int            `json:"total_campaigns"`
	CampaignsByStatus map[string]int `json:"campaigns_by_status"`
	TotalArtifacts    int            `json:"total_artifacts"`
	TotalLogs         int            `json:"total_logs"`
}

// GetStats returns aggregate counts for the status command.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{CampaignsByStatus: make(map[string]int)}

	rows, err := s.conn.Query("SELECT status, COUNT(*) FROM campaigns GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.CampaignsByStatus[status] = count
		stats.TotalCampaigns += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.conn.QueryRow("SELECT COUNT(*) FROM artifacts").Scan(&stats.TotalArtifacts); err != nil {
		return nil, err
	}
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM logs").Scan(&stats.TotalLogs); err != nil {
		return nil, err
	}

	return stats, nil
}
