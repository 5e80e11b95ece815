package model

import "time"

type MessageRole string

const (
	RoleStudent MessageRole = "student"
	RoleTutor   MessageRole = "tutor"
)

type InputType string

const (
	InputVoice InputType = "voice"
	InputText  InputType = "text"
)

// Message is one immutable entry of the interaction log. Rows are only ever appended.
type Message struct {
	ID        uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID string      `gorm:"type:varchar(36);not null;index:idx_student_created" json:"studentId"`
	Role      MessageRole `gorm:"size:16;not null" json:"role"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	InputType InputType   `gorm:"size:16;not null;default:'text'" json:"inputType"`
	CreatedAt time.Time   `gorm:"index:idx_student_created" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
