package domain

import "time"

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

func (r Role) IsValid() bool {
	return r == RolePassenger || r == RoleDriver
}

// User is an account. Rides and Requests are denormalized ride id lists
// maintained only through UserRepository's list operations.
type User struct {
	ID            string    `json:"id" bson:"_id"`
	Name          string    `json:"name" bson:"name"`
	LastName      string    `json:"lastName" bson:"lastName"`
	UniversityID  int       `json:"universityId" bson:"universityId"`
	Email         string    `json:"email" bson:"email"`
	ContactNumber string    `json:"contactNumber" bson:"contactNumber"`
	PasswordHash  string    `json:"-" bson:"passwordHash"`
	Photo         string    `json:"photo,omitempty" bson:"photo,omitempty"`
	Roles         []Role    `json:"roles" bson:"roles"`
	CurrentRole   Role      `json:"currentRole" bson:"currentRole"`
	VehicleID     string    `json:"vehicleId,omitempty" bson:"vehicleId,omitempty"`
	Rides         []string  `json:"rides" bson:"rides"`
	Requests      []string  `json:"requests" bson:"requests"`
	IsActive      bool      `json:"isActive" bson:"isActive"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRole grants role once.
func (u *User) AddRole(role Role) {
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
}

// HasRequest reports whether rideID is in the requests list.
func (u *User) HasRequest(rideID string) bool {
	return containsID(u.Requests, rideID)
}

// FullName joins name and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.Name
	}
	return u.Name + " " + u.LastName
}

func (u *User) Clone() *User {
	c := *u
	c.Roles = append([]Role(nil), u.Roles...)
	c.Rides = append([]string(nil), u.Rides...)
	c.Requests = append([]string(nil), u.Requests...)
	return &c
}

// Vehicle belongs to exactly one driver.
type Vehicle struct {
	ID        string    `json:"id" bson:"_id"`
	OwnerID   string    `json:"ownerId" bson:"ownerId"`
	Brand     string    `json:"brand" bson:"brand"`
	Model     string    `json:"model" bson:"model"`
	Plate     string    `json:"plate" bson:"plate"`
	Capacity  int       `json:"capacity" bson:"capacity"`
	Color     string    `json:"color,omitempty" bson:"color,omitempty"`
	Photo     string    `json:"photo,omitempty" bson:"photo,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (v *Vehicle) Clone() *Vehicle {
	c := *v
	return &c
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AppendID returns ids with id added unless already present.
func AppendID(ids []string, id string) []string {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

// RemoveID returns ids without any occurrence of id.
func RemoveID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
