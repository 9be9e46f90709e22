package gormstore

import "time"

const (
	messageTable       = "sms_queue"
	authorizationTable = "sms_authorization"
)

type messageModel struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement;index:sms_queue_status_created_idx,priority:3"`
	Receiver   string     `gorm:"column:receiver;type:varchar(64);not null"`
	Payload    string     `gorm:"column:payload;type:text;not null"`
	Status     int16      `gorm:"column:status;type:smallint;not null;default:0;index:sms_queue_status_created_idx,priority:1;index:sms_queue_status_claimed_idx,priority:1"`
	Attempts   int        `gorm:"column:attempts;not null;default:0"`
	ClaimToken *string    `gorm:"column:claim_token"`
	ClaimedAt  *time.Time `gorm:"column:claimed_at;index:sms_queue_status_claimed_idx,priority:2"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null;index:sms_queue_status_created_idx,priority:2"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;not null"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (messageModel) TableName() string {
	return messageTable
}

type authorizationModel struct {
	Token      string    `gorm:"column:token;primaryKey"`
	Authorized bool      `gorm:"column:authorized;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (authorizationModel) TableName() string {
	return authorizationTable
}
