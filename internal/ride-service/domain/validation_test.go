package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validDraft() RideDraft {
	return RideDraft{
		DeparturePoint:   "Campus",
		DestinationPoint: "Chía",
		Route:            "Variante",
		DepartureTime:    t0.Add(time.Hour).Format(time.RFC3339),
		Capacity:         "3",
		PricePassenger:   "4000",
		VehicleSeats:     4,
		Now:              t0,
	}
}

func TestParseRide(t *testing.T) {
	in, err := ParseRide(validDraft())
	if err != nil {
		t.Fatalf("ParseRide: %v", err)
	}
	if in.Capacity != 3 || in.PricePassenger != 4000 {
		t.Errorf("parsed = %+v", in)
	}
	if !in.DepartureTime.Equal(t0.Add(time.Hour)) {
		t.Errorf("DepartureTime = %v", in.DepartureTime)
	}
}

func TestValidateRideFirstFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *RideDraft)
		field  string
	}{
		{"capacity above vehicle", func(d *RideDraft) { d.Capacity = "5" }, "capacity"},
		{"capacity fractional", func(d *RideDraft) { d.Capacity = "2.5" }, "capacity"},
		{"capacity zero", func(d *RideDraft) { d.Capacity = "0" }, "capacity"},
		{"price negative", func(d *RideDraft) { d.PricePassenger = "-1" }, "pricePassenger"},
		{"price text", func(d *RideDraft) { d.PricePassenger = "free" }, "pricePassenger"},
		{"departure past", func(d *RideDraft) { d.DepartureTime = t0.Add(-time.Minute).Format(time.RFC3339) }, "departureTime"},
		{"departure garbage", func(d *RideDraft) { d.DepartureTime = "tomorrow" }, "departureTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			errs := ValidateRide(d)
			if len(errs) != 1 {
				t.Fatalf("errors = %v, want exactly one", errs)
			}
			if _, ok := errs[tt.field]; !ok {
				t.Errorf("errors = %v, want field %s", errs, tt.field)
			}
		})
	}
}

func TestValidateRideReportsAllMissing(t *testing.T) {
	errs := ValidateRide(RideDraft{VehicleSeats: 4, Now: t0})
	for _, f := range []string{"departurePoint", "destinationPoint", "route", "departureTime", "capacity", "pricePassenger"} {
		if errs[f] != "is required" {
			t.Errorf("%s: got %q", f, errs[f])
		}
	}
}

func TestParseRideWholeFloatAndLocalTime(t *testing.T) {
	d := validDraft()
	d.Capacity = "3.0"
	d.DepartureTime = "2026-03-02T09:30"
	in, err := ParseRide(d)
	if err != nil {
		t.Fatalf("ParseRide: %v", err)
	}
	if in.Capacity != 3 {
		t.Errorf("Capacity = %d", in.Capacity)
	}
	if in.DepartureTime.Hour() != 9 || in.DepartureTime.Minute() != 30 {
		t.Errorf("DepartureTime = %v", in.DepartureTime)
	}
}

func TestParseRideReturnsValidationError(t *testing.T) {
	d := validDraft()
	d.Capacity = "9"
	_, err := ParseRide(d)
	var de *Error
	if !errors.As(err, &de) || de.Kind != KindValidation {
		t.Fatalf("err = %v", err)
	}
	if de.Fields["capacity"] == "" {
		t.Errorf("fields = %v", de.Fields)
	}
}

func TestValidateSeatRequest(t *testing.T) {
	tests := []struct {
		req  SeatRequest
		want string
	}{
		{SeatRequest{Tickets: 0}, "tickets"},
		{SeatRequest{Tickets: 2, Points: []string{"a"}}, "passengerPoints"},
		{SeatRequest{Tickets: 2, Points: []string{"a", "  "}}, "passengerPoints"},
		{SeatRequest{Tickets: 1, Points: []string{"a"}}, ""},
	}
	for _, tt := range tests {
		errs := ValidateSeatRequest(tt.req)
		if tt.want == "" {
			if errs != nil {
				t.Errorf("%+v: unexpected %v", tt.req, errs)
			}
			continue
		}
		if _, ok := errs[tt.want]; !ok {
			t.Errorf("%+v: errors = %v, want %s", tt.req, errs, tt.want)
		}
	}
}

func TestValidateRegistrationCollectsAll(t *testing.T) {
	errs := ValidateRegistration(Registration{
		Name:          "A",
		LastName:      "Gomez",
		UniversityID:  "12345",
		Email:         "ana@gmail.com",
		ContactNumber: "300",
		Password:      "password",
		EmailDomain:   "unisabana.edu.co",
	})
	for _, f := range []string{"name", "universityId", "email", "contactNumber", "password"} {
		if _, ok := errs[f]; !ok {
			t.Errorf("missing error for %s in %v", f, errs)
		}
	}
	if _, ok := errs["lastName"]; ok {
		t.Errorf("lastName should be valid: %v", errs)
	}
}

func TestValidateRegistrationAccepts(t *testing.T) {
	errs := ValidateRegistration(Registration{
		Name:          "Ana",
		LastName:      "Gomez",
		UniversityID:  "123456",
		Email:         "ana.gomez@unisabana.edu.co",
		ContactNumber: "3001234567",
		Password:      "s3cret!pass",
		EmailDomain:   "unisabana.edu.co",
	})
	if errs != nil {
		t.Errorf("unexpected errors %v", errs)
	}
}

func TestValidateVehicle(t *testing.T) {
	errs := ValidateVehicle(VehicleDraft{Brand: "Kia", Plate: "AB1234", Capacity: 5})
	for _, f := range []string{"model", "photo", "plate", "capacity"} {
		if _, ok := errs[f]; !ok {
			t.Errorf("missing error for %s in %v", f, errs)
		}
	}
	ok := VehicleDraft{Brand: "Kia", Model: "Picanto", Plate: "abc123", Capacity: 4, Photo: "http://img"}
	if errs := ValidateVehicle(ok); errs != nil {
		t.Errorf("unexpected %v", errs)
	}
	if NormalizePlate(" abc123 ") != "ABC123" {
		t.Error("NormalizePlate")
	}
}

func TestPasswordRules(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"s3cret!pass", true},
		{"short1!", false},
		{"nodigits!!", false},
		{"nospecial12", false},
		{"a1!" + strings.Repeat("x", MaxPasswordBytes-3), true},
		{"a1!" + strings.Repeat("x", MaxPasswordBytes-2), false},
	}
	for _, tt := range tests {
		errs := checkPassword("password", tt.password)
		if (errs == nil) != tt.ok {
			t.Errorf("%d bytes %q: errors = %v, want ok=%v", len(tt.password), tt.password, errs, tt.ok)
		}
	}
}

func TestValidateProfileUpdate(t *testing.T) {
	if !(ProfileUpdate{Name: " "}).Empty() {
		t.Error("blank update should be empty")
	}
	if errs := ValidateProfileUpdate(ProfileUpdate{LastName: "Rodriguez Pardo"}); errs != nil {
		t.Errorf("unexpected %v", errs)
	}
	errs := ValidateProfileUpdate(ProfileUpdate{Name: "A", ContactNumber: "12"})
	for _, f := range []string{"name", "contactNumber"} {
		if _, ok := errs[f]; !ok {
			t.Errorf("missing error for %s in %v", f, errs)
		}
	}
}

func TestValidatePasswordChange(t *testing.T) {
	errs := ValidatePasswordChange(PasswordChange{})
	if _, ok := errs["currentPassword"]; !ok {
		t.Errorf("errors = %v", errs)
	}
	if _, ok := errs["newPassword"]; !ok {
		t.Errorf("errors = %v", errs)
	}
	if errs := ValidatePasswordChange(PasswordChange{CurrentPassword: "x", NewPassword: "n3w!secret"}); errs != nil {
		t.Errorf("unexpected %v", errs)
	}
}
