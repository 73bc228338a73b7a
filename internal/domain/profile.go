package domain

import "time"

// Gender and blood type codes accepted by the registry.
const (
	GenderMale        = "M"
	GenderFemale      = "F"
	GenderOther       = "O"
	GenderUndisclosed = "U"
)

// MedicalProfile is the emergency profile for one patient, keyed by the
// patient's national ID. OwnerEmail/OwnerPhone belong to the patient and are
// the targets for access notifications; they are never shown to viewers.
type MedicalProfile struct {
	NationalID        string                 `json:"national_id" dynamodbav:"national_id"`
	FullName          string                 `json:"full_name" dynamodbav:"full_name"`
	DateOfBirth       string                 `json:"date_of_birth,omitempty" dynamodbav:"date_of_birth"` // YYYY-MM-DD
	Country           string                 `json:"country" dynamodbav:"country"`
	Gender            string                 `json:"gender" dynamodbav:"gender"`
	BloodType         string                 `json:"blood_type,omitempty" dynamodbav:"blood_type"`
	Allergies         string                 `json:"allergies,omitempty" dynamodbav:"allergies"`
	MedicalConditions string                 `json:"medical_conditions,omitempty" dynamodbav:"medical_conditions"`
	Medications       string                 `json:"medications,omitempty" dynamodbav:"medications"`
	EmergencyContact  string                 `json:"emergency_contact" dynamodbav:"emergency_contact"`
	EmergencyPhone    string                 `json:"emergency_phone,omitempty" dynamodbav:"emergency_phone"`
	OwnerEmail        string                 `json:"owner_email,omitempty" dynamodbav:"owner_email"`
	OwnerPhone        string                 `json:"owner_phone,omitempty" dynamodbav:"owner_phone"`
	HealthData        map[string]interface{} `json:"health_data,omitempty" dynamodbav:"health_data"`
	CreatedAt         time.Time              `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time              `json:"updated" dynamodbav:"updated_at"`
}

// PublicProfile is the limited field set served on the emergency view.
type PublicProfile struct {
	FullName         string `json:"full_name"`
	Country          string `json:"country"`
	Gender           string `json:"gender"`
	BloodType        string `json:"blood_type,omitempty"`
	Allergies        string `json:"allergies,omitempty"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone,omitempty"`
	Age              *int   `json:"age,omitempty"`
}

// Public projects the profile onto the limited emergency view.
func (p *MedicalProfile) Public() PublicProfile {
	return PublicProfile{
		FullName:         p.FullName,
		Country:          p.Country,
		Gender:           p.Gender,
		BloodType:        p.BloodType,
		Allergies:        p.Allergies,
		EmergencyContact: p.EmergencyContact,
		EmergencyPhone:   p.EmergencyPhone,
		Age:              p.Age(),
	}
}

// Age derives the age in whole years from DateOfBirth, nil when unknown.
func (p *MedicalProfile) Age() *int {
	if p.DateOfBirth == "" {
		return nil
	}
	dob, err := time.Parse("2006-01-02", p.DateOfBirth)
	if err != nil {
		return nil
	}
	now := time.Now()
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return &years
}

// CreateProfileRequest is the payload for registering a profile.
type CreateProfileRequest struct {
	NationalID        string `json:"national_id" validate:"required,max=20"`
	FullName          string `json:"full_name" validate:"required,max=100"`
	DateOfBirth       string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Country           string `json:"country" validate:"max=50"`
	Gender            string `json:"gender" validate:"omitempty,oneof=M F O U"`
	BloodType         string `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies         string `json:"allergies"`
	MedicalConditions string `json:"medical_conditions"`
	Medications       string `json:"medications"`
	EmergencyContact  string `json:"emergency_contact" validate:"required,max=100"`
	EmergencyPhone    string `json:"emergency_phone" validate:"max=20"`
	OwnerEmail        string `json:"owner_email" validate:"omitempty,email"`
	OwnerPhone        string `json:"owner_phone" validate:"omitempty,e164"`
}

// UpdateProfileRequest carries optional field updates; nil means unchanged.
type UpdateProfileRequest struct {
	FullName          *string `json:"full_name" validate:"omitempty,max=100"`
	DateOfBirth       *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Country           *string `json:"country" validate:"omitempty,max=50"`
	Gender            *string `json:"gender" validate:"omitempty,oneof=M F O U"`
	BloodType         *string `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies         *string `json:"allergies"`
	MedicalConditions *string `json:"medical_conditions"`
	Medications       *string `json:"medications"`
	EmergencyContact  *string `json:"emergency_contact" validate:"omitempty,max=100"`
	EmergencyPhone    *string `json:"emergency_phone" validate:"omitempty,max=20"`
	OwnerEmail        *string `json:"owner_email" validate:"omitempty,email"`
	OwnerPhone        *string `json:"owner_phone" validate:"omitempty,e164"`
}
