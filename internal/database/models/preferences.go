package models

// FilterPreference is the stored, not yet normalized, filter of a user in a scope.
// Empty strings mean "not set".
type FilterPreference struct {
	UserID       int64  `bson:"user_id" gorm:"primaryKey;autoIncrement:false"`
	ScopeID      int64  `bson:"scope_id" gorm:"primaryKey;autoIncrement:false"`
	MediaType    string `bson:"media_type,omitempty" gorm:"column:media_type;size:16;not null;default:''"`
	DateMode     string `bson:"date_mode,omitempty" gorm:"column:date_mode;size:16;not null;default:''"`
	DateFrom     string `bson:"date_from,omitempty" gorm:"column:date_from;size:10;not null;default:''"`
	DateTo       string `bson:"date_to,omitempty" gorm:"column:date_to;size:10;not null;default:''"`
	DurationMode string `bson:"duration_mode,omitempty" gorm:"column:duration_mode;size:16;not null;default:''"`
	DurationMax  string `bson:"duration_max,omitempty" gorm:"column:duration_max;size:16;not null;default:''"`
}

func (FilterPreference) TableName() string { return "filter_preferences" }

// FilterFields lists the column/field names a filter write may target.
var FilterFields = []string{"media_type", "date_mode", "date_from", "date_to", "duration_mode", "duration_max"}

// BehaviorSetting is one raw key/value setting row of a scope.
type BehaviorSetting struct {
	ScopeID int64  `bson:"scope_id" gorm:"primaryKey;autoIncrement:false"`
	Key     string `bson:"key" gorm:"column:setting_key;primaryKey;size:32"`
	Value   string `bson:"value" gorm:"not null;size:32"`
}

func (BehaviorSetting) TableName() string { return "behavior_settings" }
