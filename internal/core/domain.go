package core

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 500
	MaxCategoryLength    = 50
	MaxNameLength        = 100
	DefaultCurrency      = "EUR"
	DefaultAlertPercent  = 80
)

type (
	Frequency string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		Currency     string    `json:"currency"`
		Avatar       string    `json:"avatar,omitempty"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Expense struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		Title       string    `json:"title"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category"`
		Date        Date      `json:"date"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	RecurringExpense struct {
		ID             string    `json:"id"`
		UserID         string    `json:"user_id"`
		Title          string    `json:"title"`
		Amount         Money     `json:"amount"`
		Category       string    `json:"category"`
		Frequency      Frequency `json:"frequency"`
		NextOccurrence Date      `json:"next_occurrence"`
		AnchorDay      int       `json:"anchor_day,omitempty"`
		Active         bool      `json:"active"`
		CreatedAt      time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyTitle         = errors.New("empty title")
	ErrTitleTooLong       = errors.New("title too long (max 200 characters)")
	ErrDescriptionTooLong = errors.New("description too long (max 500 characters)")
	ErrEmptyCategory      = errors.New("empty category")
	ErrCategoryTooLong    = errors.New("category too long (max 50 characters)")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long (max 100 characters)")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrInvalidAvatar      = errors.New("invalid avatar url")
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

const DateLayout = "2006-01-02"

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if d.Year() < 1970 || d.Year() > 9999 {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as well, keeping only the calendar day.
	if len(s) > len(DateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return ErrInvalidDate
		}
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Normalize trims text fields and lowercases the category so that grouping
// is case-insensitive.
func (e *Expense) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Category = NormalizeCategory(e.Category)
}

// NormalizeCategory trims and lowercases a category label.
func NormalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func (e Expense) Validate() error {
	if err := validateTitle(e.Title); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := validateCategory(e.Category); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (re *RecurringExpense) Normalize() {
	re.Title = strings.TrimSpace(re.Title)
	re.Category = NormalizeCategory(re.Category)
	re.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(re.Frequency))))
	if re.AnchorDay == 0 && !re.NextOccurrence.IsZero() {
		re.AnchorDay = re.NextOccurrence.Day()
	}
}

// Advance returns the occurrence following NextOccurrence.
func (re RecurringExpense) Advance() Date {
	anchor := re.AnchorDay
	if anchor == 0 {
		anchor = re.NextOccurrence.Day()
	}
	return re.Frequency.Next(re.NextOccurrence, anchor)
}

// NextOnOrAfter returns the first occurrence that falls on day or later.
func (re RecurringExpense) NextOnOrAfter(day Date) Date {
	for re.NextOccurrence.Before(day) {
		re.NextOccurrence = re.Advance()
	}
	return re.NextOccurrence
}

func (re RecurringExpense) Validate() error {
	if err := validateTitle(re.Title); err != nil {
		return err
	}
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if err := validateCategory(re.Category); err != nil {
		return err
	}
	if !re.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if err := re.NextOccurrence.Validate(); err != nil {
		return err
	}
	return nil
}

// Materialize builds the concrete expense for one occurrence of the template.
func (re RecurringExpense) Materialize(on Date) Expense {
	return Expense{
		UserID:      re.UserID,
		Title:       re.Title,
		Amount:      re.Amount,
		Category:    re.Category,
		Date:        on,
		Description: "recurring: " + string(re.Frequency),
	}
}

func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Currency = strings.ToUpper(strings.TrimSpace(u.Currency))
	u.Avatar = strings.TrimSpace(u.Avatar)
	if u.Currency == "" {
		u.Currency = DefaultCurrency
	}
}

func (u User) Validate() error {
	if u.Name == "" {
		return ErrEmptyName
	}
	if len(u.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if _, err := mail.ParseAddress(u.Email); err != nil || !strings.Contains(u.Email, "@") {
		return ErrInvalidEmail
	}
	if !ValidCurrency(u.Currency) {
		return ErrInvalidCurrency
	}
	if u.Avatar != "" && !strings.HasPrefix(u.Avatar, "http://") && !strings.HasPrefix(u.Avatar, "https://") {
		return ErrInvalidAvatar
	}
	return nil
}

// ValidCurrency reports whether code looks like an ISO-4217 code.
func ValidCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

func validateTitle(t string) error {
	if strings.TrimSpace(t) == "" {
		return ErrEmptyTitle
	}
	if len(t) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func validateCategory(c string) error {
	if strings.TrimSpace(c) == "" {
		return ErrEmptyCategory
	}
	if len(c) > MaxCategoryLength {
		return ErrCategoryTooLong
	}
	return nil
}

// IsValidationError reports whether err is one of the domain validation errors.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationErrors = []error{
	ErrInvalidDate, ErrInvalidAmount, ErrEmptyTitle, ErrTitleTooLong,
	ErrDescriptionTooLong, ErrEmptyCategory, ErrCategoryTooLong,
	ErrInvalidFrequency, ErrEmptyName, ErrNameTooLong, ErrInvalidEmail,
	ErrInvalidCurrency, ErrInvalidAvatar, ErrInvalidThreshold, ErrInvalidBudget,
}
