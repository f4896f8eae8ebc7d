package domain

// ReinforcementRecord tracks, for one task, which tags fully pass and which
// previously failing inputs now pass. Entries keep insertion order.
type ReinforcementRecord struct {
	TaskID       string        `json:"task_id"`
	PassedTags   []TagStatus   `json:"passed_tags"`
	PastFailures []PastFailure `json:"past_failures"`
}

// TagStatus records whether every test under a tag currently passes.
type TagStatus struct {
	Tag    string `json:"tag"`
	Passed bool   `json:"passed"`
}

// PastFailure records an input that once failed and whether it passes now.
type PastFailure struct {
	Key        string `json:"key"`
	Input      Value  `json:"input"`
	NowPassing bool   `json:"now_passing"`
}

// NewReinforcementRecord creates an empty record for a task.
func NewReinforcementRecord(taskID string) *ReinforcementRecord {
	return &ReinforcementRecord{TaskID: taskID}
}

// Clone returns a deep copy of the record.
func (r *ReinforcementRecord) Clone() *ReinforcementRecord {
	out := &ReinforcementRecord{TaskID: r.TaskID}
	out.PassedTags = append([]TagStatus(nil), r.PassedTags...)
	out.PastFailures = append([]PastFailure(nil), r.PastFailures...)
	return out
}

// SetTag records the status of a tag, keeping its original position.
func (r *ReinforcementRecord) SetTag(tag string, passed bool) {
	for i := range r.PassedTags {
		if r.PassedTags[i].Tag == tag {
			r.PassedTags[i].Passed = passed
			return
		}
	}
	r.PassedTags = append(r.PassedTags, TagStatus{Tag: tag, Passed: passed})
}

// HasTag reports whether the tag has been recorded.
func (r *ReinforcementRecord) HasTag(tag string) bool {
	for _, t := range r.PassedTags {
		if t.Tag == tag {
			return true
		}
	}
	return false
}

// TagPassed returns the recorded status of a tag.
func (r *ReinforcementRecord) TagPassed(tag string) (passed, ok bool) {
	for _, t := range r.PassedTags {
		if t.Tag == tag {
			return t.Passed, true
		}
	}
	return false, false
}

// SetPastFailure records whether a previously failing input passes now.
func (r *ReinforcementRecord) SetPastFailure(input Value, nowPassing bool) {
	key := HumanReadable(input)
	for i := range r.PastFailures {
		if r.PastFailures[i].Key == key {
			r.PastFailures[i].NowPassing = nowPassing
			return
		}
	}
	r.PastFailures = append(r.PastFailures, PastFailure{Key: key, Input: input, NowPassing: nowPassing})
}

// HasPastFailure reports whether the input has failed before.
func (r *ReinforcementRecord) HasPastFailure(input Value) bool {
	key := HumanReadable(input)
	for _, f := range r.PastFailures {
		if f.Key == key {
			return true
		}
	}
	return false
}

// Summary renders the record as short lines suitable for display.
func (r *ReinforcementRecord) Summary() []string {
	var lines []string
	for _, t := range r.PassedTags {
		if t.Tag == "" {
			continue
		}
		if t.Passed {
			lines = append(lines, "✓ "+t.Tag)
		} else {
			lines = append(lines, "✗ "+t.Tag)
		}
	}
	for _, f := range r.PastFailures {
		if f.NowPassing {
			lines = append(lines, "Fixed: input "+f.Key)
		}
	}
	return lines
}
