package timeline

// ActiveIndex returns the index of the line playing at currentTime, or NoLine.
//
// Lines are scanned in sequence order and the last line whose window contains
// currentTime wins. When a started line has already ended and its successor
// has not started yet, the position is in a gap and the result is reset to
// NoLine. Input order is not assumed to be sorted by time.
func (t *Timeline) ActiveIndex(currentTime float64) int {
	return ActiveIndex(t.lines, currentTime)
}

// ActiveIndex resolves the active line over an arbitrary slice of lines
func ActiveIndex(lines []TimedLine, currentTime float64) int {
	active := NoLine

	for i := range lines {
		line := &lines[i]
		if line.StartTime == nil || currentTime < *line.StartTime {
			continue
		}

		if line.EndTime == nil || currentTime < *line.EndTime {
			active = i
			continue
		}

		// Ended: a gap unless the next line has already started
		if i+1 >= len(lines) {
			active = NoLine
			continue
		}
		next := &lines[i+1]
		if next.StartTime == nil || currentTime < *next.StartTime {
			active = NoLine
		}
	}

	return active
}

// Stats summarizes timing progress of a timeline
type Stats struct {
	TotalLines     int      `json:"totalLines"`
	TimedLines     int      `json:"timedLines"`
	CompletedLines int      `json:"completedLines"`
	TotalDuration  *float64 `json:"totalDuration"`
}

// Stats counts timed (start set) and completed (start and end set) lines.
// TotalDuration is the end time of the last line when it is set and non-zero.
func (t *Timeline) Stats() Stats {
	return StatsOf(t.lines)
}

// StatsOf computes Stats over a detached line slice
func StatsOf(lines []TimedLine) Stats {
	s := Stats{TotalLines: len(lines)}
	for _, l := range lines {
		if l.StartTime != nil {
			s.TimedLines++
			if l.EndTime != nil {
				s.CompletedLines++
			}
		}
	}
	if n := len(lines); n > 0 && lines[n-1].EndTime != nil && *lines[n-1].EndTime != 0 {
		end := *lines[n-1].EndTime
		s.TotalDuration = &end
	}
	return s
}
