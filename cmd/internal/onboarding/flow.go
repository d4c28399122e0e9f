package onboarding

import (
	"slices"
	"strings"

	apiv1 "glowguard/shared/contracts/api/v1"
)

// TotalSteps is the number of onboarding steps.
const TotalSteps = 4

// Answers holds everything collected by the flow. Age is kept as typed so
// that step 1 can report a precise error.
type Answers struct {
	Username        string
	Email           string
	Password        string
	Age             string
	SkinType        string
	Concerns        []string
	CurrentProducts string
	Goals           string
}

// Flow is the onboarding state machine. The zero value is not usable; use NewFlow.
type Flow struct {
	step     int
	answers  Answers
	complete bool
}

// NewFlow starts a flow at step 1.
func NewFlow() *Flow {
	return &Flow{step: 1}
}

// Step returns the current step, 1..TotalSteps.
func (f *Flow) Step() int { return f.step }

// Progress returns the completion percentage shown for the current step.
func (f *Flow) Progress() float64 {
	return float64(f.step) / TotalSteps * 100
}

// Complete reports whether the last step has been passed.
func (f *Flow) Complete() bool { return f.complete }

// Answers returns a copy of the collected answers.
func (f *Flow) Answers() Answers {
	a := f.answers
	a.Concerns = slices.Clone(f.answers.Concerns)
	return a
}

// SetBasics records step 1 input.
func (f *Flow) SetBasics(username, email, password, age string) {
	f.answers.Username = strings.TrimSpace(username)
	f.answers.Email = strings.TrimSpace(email)
	f.answers.Password = password
	f.answers.Age = strings.TrimSpace(age)
}

// SetSkinType records step 2 input.
func (f *Flow) SetSkinType(t string) {
	f.answers.SkinType = NormalizeSkinType(t)
}

// ToggleConcern selects c if it is not selected, and deselects it otherwise.
func (f *Flow) ToggleConcern(c string) error {
	canon, ok := canonicalConcern(c)
	if !ok {
		return FieldError{Field: "skin_concerns", Kind: ErrUnknownValue, Msg: "Unknown concern: " + strings.TrimSpace(c)}
	}
	if i := slices.Index(f.answers.Concerns, canon); i >= 0 {
		f.answers.Concerns = slices.Delete(f.answers.Concerns, i, i+1)
		return nil
	}
	f.answers.Concerns = append(f.answers.Concerns, canon)
	return nil
}

// SetRoutine records step 4 input.
func (f *Flow) SetRoutine(currentProducts, goals string) {
	f.answers.CurrentProducts = strings.TrimSpace(currentProducts)
	f.answers.Goals = strings.TrimSpace(goals)
}

// Next validates the current step and advances. Passing the last step marks
// the flow complete.
func (f *Flow) Next() error {
	if f.complete {
		return ErrFlowComplete
	}
	if err := f.validateStep(f.step); err != nil {
		return err
	}
	if f.step < TotalSteps {
		f.step++
		return nil
	}
	f.complete = true
	return nil
}

// Back returns to the previous step. It is a no-op on step 1.
func (f *Flow) Back() {
	f.complete = false
	if f.step > 1 {
		f.step--
	}
}

func (f *Flow) validateStep(step int) error {
	a := f.answers
	switch step {
	case 1:
		if err := validateUsername(a.Username); err != nil {
			return err
		}
		if err := validateEmail(a.Email); err != nil {
			return err
		}
		if err := validatePassword(a.Password); err != nil {
			return err
		}
		_, err := parseAge(a.Age)
		return err
	case 2:
		// Skin type is optional; a given one must be known.
		if a.SkinType == "" {
			return nil
		}
		return validateSkinType(a.SkinType)
	}
	// Concerns are validated on toggle; step 4 is free text.
	return nil
}

// RegisterRequest validates every step and builds the backend request.
// It does not require the flow to have been walked with Next.
func (f *Flow) RegisterRequest() (apiv1.RegisterRequest, error) {
	for s := 1; s <= TotalSteps; s++ {
		if err := f.validateStep(s); err != nil {
			return apiv1.RegisterRequest{}, err
		}
	}

	a := f.answers
	age, _ := parseAge(a.Age)
	req := apiv1.RegisterRequest{
		Username:        a.Username,
		Email:           a.Email,
		Password:        a.Password,
		Age:             age,
		SkinType:        optional(a.SkinType),
		SkinConcerns:    slices.Clone(a.Concerns),
		CurrentProducts: optional(a.CurrentProducts),
		Goals:           optional(a.Goals),
	}
	if req.SkinConcerns == nil {
		req.SkinConcerns = []string{}
	}
	return req, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
