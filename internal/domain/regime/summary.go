package regime

// Streak is a maximal run of consecutive rows sharing one smoothed regime
type Streak struct {
	Regime Label `json:"regime"`
	Start  int   `json:"start"`
	Length int   `json:"length"`
}

// Summary describes the distribution of the smoothed regime over a table
type Summary struct {
	Total       int               `json:"total"`
	Counts      map[Label]int     `json:"counts"`
	Percent     map[Label]float64 `json:"percent"`
	AvgDuration map[Label]float64 `json:"avg_duration"`
	Streaks     []Streak          `json:"streaks"`
}

// Empty reports the "no data" case: an empty table or one without smoothed labels
func (s Summary) Empty() bool {
	return s.Total == 0 || len(s.Streaks) == 0
}
