package model

type Subject struct {
	ID   uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Code string `gorm:"column:code;type:varchar(32);not null;uniqueIndex"`
	Name string `gorm:"column:name;type:text;not null"`
	Type string `gorm:"column:type;type:varchar(32);not null;default:''"`
}

func (Subject) TableName() string {
	return "subjects"
}
