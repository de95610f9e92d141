package models

// CacheEntry is a persisted key/value pair, used for the last good metal
// rate table.
type CacheEntry struct {
	BaseModel
	Key   string `gorm:"uniqueIndex;not null" json:"key"`
	Value string `gorm:"type:text;not null" json:"value"`
}
