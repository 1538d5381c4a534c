package models

import (
	"time"
)

// CaseStatus is the review lifecycle status of a case.
type CaseStatus string

const (
	CaseStatusOpen        CaseStatus = "OPEN"
	CaseStatusInProgress  CaseStatus = "IN_PROGRESS"
	CaseStatusCompleted   CaseStatus = "COMPLETED"
	CaseStatusClosed      CaseStatus = "CLOSED"
	CaseStatusWithdrawn   CaseStatus = "WITHDRAWN"
	CaseStatusUnderReview CaseStatus = "UNDER_REVIEW"
	CaseStatusError       CaseStatus = "ERROR"
)

// ExportStatus tracks generation of the disclosure package for a case.
type ExportStatus string

const (
	ExportStatusNone       ExportStatus = "NONE"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusCompleted  ExportStatus = "COMPLETED"
	ExportStatusError      ExportStatus = "ERROR"
)

// Case is the top-level container for all documents and redactions
// belonging to one subject access request.
type Case struct {
	ID             string       `json:"id" db:"id"`
	CaseReference  string       `json:"case_reference" db:"case_reference"`
	Status         CaseStatus   `json:"status" db:"status"`
	DataSubjectName string      `json:"data_subject_name" db:"data_subject_name"`
	DataSubjectDOB *time.Time   `json:"data_subject_dob,omitempty" db:"data_subject_dob"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	CreatedBy      *string      `json:"created_by,omitempty" db:"created_by"`

	// RetentionReviewDate is computed exactly once at creation and is
	// never recomputed afterwards.
	RetentionReviewDate time.Time `json:"retention_review_date" db:"retention_review_date"`

	ExportStatus  ExportStatus `json:"export_status" db:"export_status"`
	ExportFile    *string      `json:"export_file,omitempty" db:"export_file"`
	ExportTaskKey *string      `json:"export_task_key,omitempty" db:"export_task_key"`
}

// RetentionReviewDate calculates the date a case becomes eligible for
// deletion. Adults and subjects with unknown date of birth get
// retentionYears from today; minors get retentionYears after their
// 18th birthday.
func RetentionReviewDate(dob *time.Time, today time.Time, retentionYears int) time.Time {
	today = today.Truncate(24 * time.Hour)
	if dob != nil {
		eighteenth := dob.AddDate(18, 0, 0)
		if today.Before(eighteenth) {
			return eighteenth.AddDate(retentionYears, 0, 0)
		}
	}
	return today.AddDate(retentionYears, 0, 0)
}
