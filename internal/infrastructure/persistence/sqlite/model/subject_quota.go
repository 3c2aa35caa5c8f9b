package model

type SubjectQuota struct {
	ID         uint64   `gorm:"column:id;primaryKey;autoIncrement"`
	CycleID    uint64   `gorm:"column:cycle_id;not null;uniqueIndex:uq_subject_quota_key,priority:1"`
	SubjectID  uint64   `gorm:"column:subject_id;not null;uniqueIndex:uq_subject_quota_key,priority:2"`
	QuotaType  string   `gorm:"column:quota_type;type:varchar(16);not null;uniqueIndex:uq_subject_quota_key,priority:3"`
	QuotaKey   string   `gorm:"column:quota_key;type:varchar(64);not null;uniqueIndex:uq_subject_quota_key,priority:4"`
	MinCount   *int     `gorm:"column:min_count"`
	MaxCount   *int     `gorm:"column:max_count"`
	Percentage *float64 `gorm:"column:percentage"`
}

func (SubjectQuota) TableName() string {
	return "subject_quotas"
}
