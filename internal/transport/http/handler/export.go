package handler

import (
	"html/template"
	"io"
	"time"

	"github.com/meditrack-api/internal/domain"
)

var profileTmpl = template.Must(template.New("profile").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Medical Profile {{.Profile.NationalID}}</title></head>
<body>
<h1>{{.Profile.FullName}}</h1>
<p>National ID: {{.Profile.NationalID}}</p>
{{if .Profile.DateOfBirth}}<p>Date of birth: {{.Profile.DateOfBirth}}</p>{{end}}
{{if .Profile.Country}}<p>Country: {{.Profile.Country}}</p>{{end}}
{{if .Profile.BloodType}}<p>Blood type: {{.Profile.BloodType}}</p>{{end}}
{{if .Profile.Allergies}}<h2>Allergies</h2><p>{{.Profile.Allergies}}</p>{{end}}
{{if .Profile.MedicalConditions}}<h2>Medical conditions</h2><p>{{.Profile.MedicalConditions}}</p>{{end}}
{{if .Profile.Medications}}<h2>Medications</h2><p>{{.Profile.Medications}}</p>{{end}}
<h2>Emergency contact</h2>
<p>{{.Profile.EmergencyContact}}{{if .Profile.EmergencyPhone}} ({{.Profile.EmergencyPhone}}){{end}}</p>
<hr>
<p><small>Generated {{.GeneratedAt}}</small></p>
</body>
</html>
`))

// renderProfileHTML writes the downloadable document for a profile. Owner
// contacts and synced device data are deliberately absent.
func renderProfileHTML(w io.Writer, p *domain.MedicalProfile) error {
	return profileTmpl.Execute(w, struct {
		Profile     *domain.MedicalProfile
		GeneratedAt string
	}{
		Profile:     p,
		GeneratedAt: time.Now().UTC().Format("2006-01-02 15:04 MST"),
	})
}
