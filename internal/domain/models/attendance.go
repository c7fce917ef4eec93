// internal/domain/models/attendance.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceExcused = "excused"
	AttendanceLate    = "late"
)

// Attendance records one member's attendance at one activity.
// (activity_id, user_id) is unique.
type Attendance struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID    primitive.ObjectID `bson:"activity_id" json:"activity_id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	IntoreGroupID primitive.ObjectID `bson:"intore_group_id" json:"intore_group_id"`

	Status     string             `bson:"status" json:"status"`
	Note       string             `bson:"note,omitempty" json:"note,omitempty"`
	RecordedBy primitive.ObjectID `bson:"recorded_by" json:"recorded_by"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ValidAttendanceStatus reports whether s is a known attendance status.
func ValidAttendanceStatus(s string) bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceExcused, AttendanceLate:
		return true
	}
	return false
}
