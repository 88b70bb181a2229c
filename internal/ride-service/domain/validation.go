package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// FieldErrors maps a request field to what is wrong with it.
type FieldErrors map[string]string

// Merge copies other into f, keeping f's entry on collision.
func (f FieldErrors) Merge(other FieldErrors) {
	for k, v := range other {
		if _, ok := f[k]; !ok {
			f[k] = v
		}
	}
}

// Validator inspects an input and reports failing fields, or nil.
type Validator[T any] func(T) FieldErrors

// FirstFailure runs validators in order and stops at the first failure.
func FirstFailure[T any](validators ...Validator[T]) Validator[T] {
	return func(in T) FieldErrors {
		for _, v := range validators {
			if errs := v(in); len(errs) > 0 {
				return errs
			}
		}
		return nil
	}
}

// Collect runs every validator and merges all failures.
func Collect[T any](validators ...Validator[T]) Validator[T] {
	return func(in T) FieldErrors {
		all := FieldErrors{}
		for _, v := range validators {
			all.Merge(v(in))
		}
		if len(all) == 0 {
			return nil
		}
		return all
	}
}

// Check turns a validator result into a validation error.
func Check[T any](v Validator[T], in T) error {
	if errs := v(in); len(errs) > 0 {
		return Invalid(errs)
	}
	return nil
}

func fieldError(field, format string, args ...interface{}) FieldErrors {
	return FieldErrors{field: fmt.Sprintf(format, args...)}
}

// Accepted departure time layouts, most specific first.
var departureLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseDepartureTime accepts RFC 3339 or a zone-less local timestamp,
// interpreted in loc.
func ParseDepartureTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range departureLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// ParseWholeNumber accepts "3" and "3.0" but not "3.5" or "abc".
func ParseWholeNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// RideDraft is an unparsed createRide request plus the context needed to
// validate it.
type RideDraft struct {
	DeparturePoint   string
	DestinationPoint string
	Route            string
	DepartureTime    string
	Capacity         string
	PricePassenger   string

	VehicleSeats int
	Now          time.Time
}

// RideInput is a validated RideDraft.
type RideInput struct {
	DeparturePoint   string
	DestinationPoint string
	Route            string
	DepartureTime    time.Time
	Capacity         int
	PricePassenger   int
}

func rideFieldsPresent(d RideDraft) FieldErrors {
	errs := FieldErrors{}
	for field, value := range map[string]string{
		"departurePoint":   d.DeparturePoint,
		"destinationPoint": d.DestinationPoint,
		"route":            d.Route,
		"departureTime":    d.DepartureTime,
		"capacity":         d.Capacity,
		"pricePassenger":   d.PricePassenger,
	} {
		if strings.TrimSpace(value) == "" {
			errs[field] = "is required"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func rideCapacityPositive(d RideDraft) FieldErrors {
	n, ok := ParseWholeNumber(d.Capacity)
	if !ok || n < 1 {
		return fieldError("capacity", "must be a positive integer")
	}
	return nil
}

func rideCapacityFitsVehicle(d RideDraft) FieldErrors {
	n, _ := ParseWholeNumber(d.Capacity)
	if n > d.VehicleSeats {
		return fieldError("capacity", "cannot exceed the vehicle capacity of %d", d.VehicleSeats)
	}
	return nil
}

func ridePricePositive(d RideDraft) FieldErrors {
	n, ok := ParseWholeNumber(d.PricePassenger)
	if !ok || n < 1 {
		return fieldError("pricePassenger", "must be a positive integer")
	}
	return nil
}

func rideDepartsInFuture(d RideDraft) FieldErrors {
	t, err := ParseDepartureTime(d.DepartureTime, d.Now.Location())
	if err != nil {
		return fieldError("departureTime", "must be a valid date and time")
	}
	if !t.After(d.Now) {
		return fieldError("departureTime", "must be in the future")
	}
	return nil
}

// ValidateRide reports all missing fields, then the first invalid one.
var ValidateRide = FirstFailure(
	rideFieldsPresent,
	rideCapacityPositive,
	rideCapacityFitsVehicle,
	ridePricePositive,
	rideDepartsInFuture,
)

// ParseRide validates d and converts it.
func ParseRide(d RideDraft) (RideInput, error) {
	if err := Check(ValidateRide, d); err != nil {
		return RideInput{}, err
	}
	capacity, _ := ParseWholeNumber(d.Capacity)
	price, _ := ParseWholeNumber(d.PricePassenger)
	departure, _ := ParseDepartureTime(d.DepartureTime, d.Now.Location())
	return RideInput{
		DeparturePoint:   strings.TrimSpace(d.DeparturePoint),
		DestinationPoint: strings.TrimSpace(d.DestinationPoint),
		Route:            strings.TrimSpace(d.Route),
		DepartureTime:    departure,
		Capacity:         capacity,
		PricePassenger:   price,
	}, nil
}

// SeatRequest is a requestRide body.
type SeatRequest struct {
	Tickets int
	Points  []string
}

func seatsPositive(r SeatRequest) FieldErrors {
	if r.Tickets < 1 {
		return fieldError("tickets", "must be at least 1")
	}
	return nil
}

func pointsMatchSeats(r SeatRequest) FieldErrors {
	if len(r.Points) != r.Tickets {
		return fieldError("passengerPoints", "must contain exactly %d pickup point(s)", r.Tickets)
	}
	return nil
}

func pointsNotBlank(r SeatRequest) FieldErrors {
	for i, p := range r.Points {
		if strings.TrimSpace(p) == "" {
			return fieldError("passengerPoints", "pickup point %d is empty", i+1)
		}
	}
	return nil
}

var ValidateSeatRequest = FirstFailure(seatsPositive, pointsMatchSeats, pointsNotBlank)

// Registration is a registerUser body.
type Registration struct {
	Name          string
	LastName      string
	UniversityID  string
	Email         string
	ContactNumber string
	Password      string
	Photo         string

	EmailDomain string
}

var (
	sixDigits = regexp.MustCompile(`^\d{6}$`)
	tenDigits = regexp.MustCompile(`^\d{10}$`)
	emailRe   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	plateRe   = regexp.MustCompile(`^[A-Za-z]{3}\d{3}$`)
)

func nameLength(field string, get func(Registration) string) Validator[Registration] {
	return func(r Registration) FieldErrors {
		n := len([]rune(strings.TrimSpace(get(r))))
		if n < 2 || n > 10 {
			return fieldError(field, "must be between 2 and 10 characters")
		}
		return nil
	}
}

func universityID(r Registration) FieldErrors {
	if !sixDigits.MatchString(strings.TrimSpace(r.UniversityID)) {
		return fieldError("universityId", "must be exactly 6 digits")
	}
	return nil
}

func universityEmail(r Registration) FieldErrors {
	email := strings.ToLower(strings.TrimSpace(r.Email))
	if !emailRe.MatchString(email) {
		return fieldError("email", "must be a valid email address")
	}
	if r.EmailDomain != "" && !strings.HasSuffix(email, "@"+strings.ToLower(r.EmailDomain)) {
		return fieldError("email", "must be a @%s address", r.EmailDomain)
	}
	return nil
}

func contactNumber(r Registration) FieldErrors {
	if !tenDigits.MatchString(strings.TrimSpace(r.ContactNumber)) {
		return fieldError("contactNumber", "must be exactly 10 digits")
	}
	return nil
}

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

func checkPassword(field, password string) FieldErrors {
	if len(password) < 8 {
		return fieldError(field, "must be at least 8 characters")
	}
	if len(password) > MaxPasswordBytes {
		return fieldError(field, "must be at most %d bytes", MaxPasswordBytes)
	}
	var digit, special bool
	for _, c := range password {
		switch {
		case unicode.IsDigit(c):
			digit = true
		case !unicode.IsLetter(c) && !unicode.IsSpace(c):
			special = true
		}
	}
	if !digit || !special {
		return fieldError(field, "must contain at least one digit and one special character")
	}
	return nil
}

func passwordStrength(r Registration) FieldErrors {
	return checkPassword("password", r.Password)
}

var ValidateRegistration = Collect(
	nameLength("name", func(r Registration) string { return r.Name }),
	nameLength("lastName", func(r Registration) string { return r.LastName }),
	universityID,
	universityEmail,
	contactNumber,
	passwordStrength,
)

// ProfileUpdate is an updateProfile body. Empty fields are left unchanged.
type ProfileUpdate struct {
	Name          string
	LastName      string
	ContactNumber string
}

func (p ProfileUpdate) Empty() bool {
	return strings.TrimSpace(p.Name) == "" &&
		strings.TrimSpace(p.LastName) == "" &&
		strings.TrimSpace(p.ContactNumber) == ""
}

func optionalName(field string, get func(ProfileUpdate) string) Validator[ProfileUpdate] {
	return func(p ProfileUpdate) FieldErrors {
		v := strings.TrimSpace(get(p))
		if v == "" {
			return nil
		}
		if n := len([]rune(v)); n < 2 || n > 20 {
			return fieldError(field, "must be between 2 and 20 characters")
		}
		return nil
	}
}

func optionalContact(p ProfileUpdate) FieldErrors {
	v := strings.TrimSpace(p.ContactNumber)
	if v != "" && !tenDigits.MatchString(v) {
		return fieldError("contactNumber", "must be exactly 10 digits")
	}
	return nil
}

var ValidateProfileUpdate = Collect(
	optionalName("name", func(p ProfileUpdate) string { return p.Name }),
	optionalName("lastName", func(p ProfileUpdate) string { return p.LastName }),
	optionalContact,
)

// PasswordChange is an updatePassword body.
type PasswordChange struct {
	CurrentPassword string
	NewPassword     string
}

func passwordsPresent(c PasswordChange) FieldErrors {
	errs := FieldErrors{}
	if c.CurrentPassword == "" {
		errs["currentPassword"] = "is required"
	}
	if c.NewPassword == "" {
		errs["newPassword"] = "is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func newPasswordStrength(c PasswordChange) FieldErrors {
	return checkPassword("newPassword", c.NewPassword)
}

var ValidatePasswordChange = FirstFailure(passwordsPresent, newPasswordStrength)

// VehicleDraft is a registerVehicle body.
type VehicleDraft struct {
	Brand    string
	Model    string
	Plate    string
	Capacity int
	Color    string
	Photo    string
}

func vehicleRequired(v VehicleDraft) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(v.Brand) == "" {
		errs["brand"] = "is required"
	}
	if strings.TrimSpace(v.Model) == "" {
		errs["model"] = "is required"
	}
	if strings.TrimSpace(v.Photo) == "" {
		errs["photo"] = "is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func vehiclePlate(v VehicleDraft) FieldErrors {
	if !plateRe.MatchString(strings.TrimSpace(v.Plate)) {
		return fieldError("plate", "must be three letters followed by three digits")
	}
	return nil
}

func vehicleCapacity(v VehicleDraft) FieldErrors {
	if v.Capacity < 1 || v.Capacity > 4 {
		return fieldError("capacity", "must be between 1 and 4")
	}
	return nil
}

var ValidateVehicle = Collect(vehicleRequired, vehiclePlate, vehicleCapacity)

// NormalizePlate trims and upper-cases a plate.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
