package domain

// LastFetchedDay returns the fetch day that produced the resume row. A row
// stamped 00:00:00 is the hour-24 row of the previous day.
func (p ResumePoint) LastFetchedDay() Date {
	if p.HasTime && p.Time.IsMidnight() {
		return p.Date.AddDays(-1)
	}
	return p.Date
}

// DaysToFetch returns the ascending, inclusive sequence of days still missing
// for a station. Without a resume point it starts at start; otherwise it
// starts the day after the last fetched day. An empty result means the
// station is up to date.
func DaysToFetch(start, end Date, resume *ResumePoint) []Date {
	from := start
	if resume != nil {
		from = resume.LastFetchedDay().AddDays(1)
	}
	if from.After(end) {
		return nil
	}

	var days []Date
	for d := from; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}
