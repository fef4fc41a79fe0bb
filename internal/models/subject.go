package models

import "time"

// Subject tracks accumulated absences for a course against its weekly class
// schedule. Authorization for a subject is always resolved transitively
// through its institution's owner; the subject row carries no owner field.
type Subject struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	RequiredHours int       `db:"required_hours" json:"required_hours"`
	AbsenceCount  int       `db:"absence_count" json:"absence_count"`
	Status        string    `db:"status" json:"status"`
	ClassesSun    int       `db:"classes_sunday" json:"classes_sunday"`
	ClassesMon    int       `db:"classes_monday" json:"classes_monday"`
	ClassesTue    int       `db:"classes_tuesday" json:"classes_tuesday"`
	ClassesWed    int       `db:"classes_wednesday" json:"classes_wednesday"`
	ClassesThu    int       `db:"classes_thursday" json:"classes_thursday"`
	ClassesFri    int       `db:"classes_friday" json:"classes_friday"`
	ClassesSat    int       `db:"classes_saturday" json:"classes_saturday"`
	InstitutionID int64     `db:"institution_id" json:"institution_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectOwner is the result of resolving a subject's ownership chain with a
// single join, pairing the parent institution with its owning user.
type SubjectOwner struct {
	InstitutionID int64 `db:"institution_id"`
	OwnerUserID   int64 `db:"owner_user_id"`
}
