package models

// Profile is the public identity of a signed-in user. Its ID is the subject
// issued by the identity provider.
type Profile struct {
	BaseModel

	Username            string  `gorm:"uniqueIndex;not null;size:64" json:"username"`
	AvatarURL           *string `json:"avatar_url"`
	Description         *string `json:"description"`
	GitHubUsername      *string `gorm:"column:github_username;size:64" json:"github_username"`
	OnboardingCompleted bool    `gorm:"not null;default:false" json:"onboarding_completed"`
}
