package models

import "time"

// HolderInfo carries the identity fields printed on a diploma. Every field is optional in storage.
type HolderInfo struct {
	FullName     *string    `db:"full_name" json:"full_name"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"date_of_birth"`
	FieldOfStudy *string    `db:"field_of_study" json:"field_of_study"`
	Email        *string    `db:"email" json:"email"`
	Phone        *string    `db:"phone" json:"phone"`
	Address      *string    `db:"address" json:"address"`
}

// DiplomaRecord is an issued diploma identified by its reference code.
type DiplomaRecord struct {
	Reference string `db:"reference" json:"reference"`
	StudentID string `db:"student_id" json:"student_id"`
	HolderInfo
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
