package timeinfo

// Map returns the record as template values keyed by tag name. Concrete
// timestamps are time.Time, fixed leads and offsets are int64 seconds,
// calendar leads are reltime.Offset, and wildcards are the string "*".
// Extra fields are added last and never replace a computed key.
func (ti TimeInfo) Map() map[string]any {
	m := map[string]any{
		"loop_by":      string(ti.LoopBy),
		"init":         momentValue(ti.Init),
		"valid":        momentValue(ti.Valid),
		"da_init":      momentValue(ti.DAInit),
		"date":         momentValue(ti.DAInit),
		"cycle":        momentValue(ti.DAInit),
		"lead":         leadValue(ti.Lead),
		"offset":       ti.Offset,
		"offset_hours": ti.OffsetHours,
		"init_fmt":     ti.InitFmt,
		"valid_fmt":    ti.ValidFmt,
		"da_init_fmt":  ti.DAInitFmt,
		"lead_string":  ti.LeadString,
	}
	if !ti.Lead.IsWildcard() {
		m["lead_hours"] = ti.LeadHours
		m["lead_minutes"] = ti.LeadMinutes
		m["lead_seconds"] = ti.LeadSeconds
	}
	if !ti.Now.IsZero() {
		m["now"] = ti.Now.UTC()
	}
	if ti.Today != "" {
		m["today"] = ti.Today
	}
	if ti.Custom != "" {
		m["custom"] = ti.Custom
	}
	for k, v := range ti.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m
}

func momentValue(m Moment) any {
	if t, ok := m.Time(); ok {
		return t
	}
	return m.String()
}

func leadValue(l Lead) any {
	switch l.Kind() {
	case LeadWildcard:
		return Wildcard
	case LeadCalendar:
		return l.Offset()
	}
	s, _ := l.Seconds()
	return s
}
