package model

type Examiner struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	FullName string `gorm:"column:full_name;type:text;not null;default:''"`
	Status   string `gorm:"column:status;type:varchar(16);not null;default:ACTIVE;index"`
	Region   string `gorm:"column:region;type:varchar(64);not null;default:''"`
	Gender   string `gorm:"column:gender;type:varchar(16);not null;default:''"`
}

func (Examiner) TableName() string {
	return "examiners"
}

type ExaminerSubjectEligibility struct {
	ExaminerID uint64 `gorm:"column:examiner_id;primaryKey"`
	SubjectID  uint64 `gorm:"column:subject_id;primaryKey;index"`
	Eligible   bool   `gorm:"column:eligible;not null;default:false"`
}

func (ExaminerSubjectEligibility) TableName() string {
	return "examiner_subject_eligibilities"
}

type ExaminerSubjectHistory struct {
	ExaminerID     uint64 `gorm:"column:examiner_id;primaryKey"`
	SubjectID      uint64 `gorm:"column:subject_id;primaryKey;index"`
	TimesMarked    int    `gorm:"column:times_marked;not null;default:0"`
	LastMarkedYear *int   `gorm:"column:last_marked_year"`
}

func (ExaminerSubjectHistory) TableName() string {
	return "examiner_subject_histories"
}

// ExaminerScore holds upstream-computed merit scores read by the table scoring oracle.
type ExaminerScore struct {
	ExaminerID uint64  `gorm:"column:examiner_id;primaryKey"`
	SubjectID  uint64  `gorm:"column:subject_id;primaryKey"`
	Year       int     `gorm:"column:year;primaryKey"`
	Score      float64 `gorm:"column:score;not null"`
}

func (ExaminerScore) TableName() string {
	return "examiner_scores"
}
