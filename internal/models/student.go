package models

import "time"

// StudentRecord is denormalised from the first verified diploma referencing StudentID.
type StudentRecord struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	HolderInfo
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewStudentRecord copies the holder fields of a diploma.
func NewStudentRecord(diploma *DiplomaRecord) *StudentRecord {
	return &StudentRecord{
		StudentID:  diploma.StudentID,
		HolderInfo: diploma.HolderInfo,
	}
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
