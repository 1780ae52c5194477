package core

// ClassifyCoverage returns Covered when the substitute teaches the same
// subject as the absent teacher and AccountedNotDone otherwise.
func ClassifyCoverage(absent, replacement Subject) CoverageType {
	if absent == replacement {
		return Covered
	}
	return AccountedNotDone
}

// NewRecord validates the draft and returns a record without id whose
// coverage type is fixed from the two subjects as they are now.
func NewRecord(d RecordDraft) (AbsenceRecord, error) {
	if err := d.Validate(); err != nil {
		return AbsenceRecord{}, err
	}
	return AbsenceRecord{
		Date:                      d.Date,
		AbsentTeacher:             d.AbsentTeacher,
		AbsentTeacherSubject:      d.AbsentTeacherSubject,
		ReplacementTeacher:        d.ReplacementTeacher,
		ReplacementTeacherSubject: d.ReplacementTeacherSubject,
		HoursCovered:              d.HoursCovered,
		Coverage:                  ClassifyCoverage(d.AbsentTeacherSubject, d.ReplacementTeacherSubject),
	}, nil
}
