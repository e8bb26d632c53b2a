package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"reflect"
	"strings"

	"github.com/luxesuite/luxeapi"
)

const minApplicantPasswordLen = 6

// Document is one uploaded supporting file.
type Document struct {
	Filename string
	Reader   io.Reader
}

// AuthenticatorApplication is the watch-authenticator application form.
type AuthenticatorApplication struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	// UseMyDetails applies with the signed-in user's identity; the name,
	// email and password fields are then not checked.
	UseMyDetails bool

	YearsOfExperience      string
	Specializations        []string
	CertificationDetails   string
	CurrentEmployer        string
	PreviousExperience     string
	ProfessionalReferences string
	WorkingLocation        string
	Availability           string
	PreferredBrands        []string
	AgreedToTerms          bool

	// Documents maps the form field name to the upload. Entries without a
	// filename or reader are skipped.
	Documents map[string]*Document
}

// Validate runs the form checks the dashboard applies before submitting.
func (a *AuthenticatorApplication) Validate() error {
	var problems []string
	if !a.UseMyDetails {
		if strings.TrimSpace(a.Name) == "" {
			problems = append(problems, "name: name is required")
		}
		if !validEmail(a.Email) {
			problems = append(problems, "email: valid email is required")
		}
		if len(a.Password) < minApplicantPasswordLen {
			problems = append(problems, fmt.Sprintf("password: must be at least %d characters", minApplicantPasswordLen))
		}
		if a.Password != a.ConfirmPassword {
			problems = append(problems, "confirmPassword: passwords do not match")
		}
	}
	if strings.TrimSpace(a.YearsOfExperience) == "" {
		problems = append(problems, "yearsOfExperience: years of experience is required")
	}
	if len(a.Specializations) == 0 {
		problems = append(problems, "specializations: at least one specialization is required")
	}
	if !a.AgreedToTerms {
		problems = append(problems, "agreedToTerms: you must agree to the terms and conditions")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (a *AuthenticatorApplication) form() (*luxeapi.Multipart, error) {
	form := luxeapi.NewMultipart().
		Field("name", a.Name).
		Field("email", a.Email).
		Field("password", a.Password).
		Field("password_confirmation", a.ConfirmPassword).
		Field("yearsOfExperience", a.YearsOfExperience).
		Field("certificationDetails", a.CertificationDetails).
		Field("currentEmployer", a.CurrentEmployer).
		Field("previousExperience", a.PreviousExperience).
		Field("professionalReferences", a.ProfessionalReferences).
		Field("workingLocation", a.WorkingLocation).
		Field("availability", a.Availability).
		Field("agreedToTerms", flag(a.AgreedToTerms)).
		Field("useMyDetails", flag(a.UseMyDetails))

	for _, spec := range a.Specializations {
		form.Field("specializations[]", spec)
	}
	for _, brand := range a.PreferredBrands {
		form.Field("preferredBrands[]", brand)
	}

	for _, key := range sortedKeys(a.Documents) {
		doc := a.Documents[key]
		if !doc.attached() {
			continue
		}
		if err := form.FileFrom(key, doc.Filename, doc.Reader); err != nil {
			return nil, err
		}
	}
	return form, nil
}

// attached reports whether the document has both a name and a usable reader.
// A nil pointer stored in the Reader interface counts as missing.
func (d *Document) attached() bool {
	if d == nil || d.Reader == nil || d.Filename == "" {
		return false
	}
	v := reflect.ValueOf(d.Reader)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return !v.IsNil()
	}
	return true
}

// SubmitAuthenticatorApplication validates and uploads the application.
// It returns the data object of the response.
func (s *Service) SubmitAuthenticatorApplication(ctx context.Context, app *AuthenticatorApplication) (map[string]any, error) {
	if app == nil {
		return nil, fmt.Errorf("%w: nil application", ErrValidation)
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	form, err := app.form()
	if err != nil {
		return nil, err
	}

	var out envelope[map[string]any]
	err = s.doer.Do(ctx, &luxeapi.Request{
		Method:    http.MethodPost,
		Path:      "/api/user/authenticator/apply",
		Multipart: form,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	if out.Message != "" {
		if _, ok := out.Data["message"]; !ok {
			out.Data["message"] = out.Message
		}
	}
	return out.Data, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
