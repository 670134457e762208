// Package catalog holds the read-only department and doctor reference data that
// bookings are validated against.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrDuplicateDepartment = errors.New("duplicate department id")
	ErrDuplicateDoctor     = errors.New("duplicate doctor id")
	ErrUnknownDepartment   = errors.New("doctor references unknown department")
	ErrBadTimeSlot         = errors.New("time slot must be HH:MM")
)

const timeSlotLayout = "15:04"

type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Doctor struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Specialization string   `json:"specialization"`
	DepartmentID   int64    `json:"departmentId"`
	Availability   []string `json:"availability"`
}

// Offers reports whether slot is one of the doctor's fixed time slots.
func (d Doctor) Offers(slot string) bool {
	return slices.Contains(d.Availability, slot)
}

func (d Doctor) clone() Doctor {
	d.Availability = slices.Clone(d.Availability)
	return d
}

// Catalog is immutable once built; every accessor hands out copies.
type Catalog struct {
	departments []Department
	doctors     []Doctor
	deptIndex   map[int64]int
	doctorIndex map[int64]int
}

// New validates the reference data and builds a catalog. Input order is preserved.
func New(departments []Department, doctors []Doctor) (*Catalog, error) {
	c := &Catalog{
		departments: make([]Department, 0, len(departments)),
		doctors:     make([]Doctor, 0, len(doctors)),
		deptIndex:   make(map[int64]int, len(departments)),
		doctorIndex: make(map[int64]int, len(doctors)),
	}

	for _, d := range departments {
		if _, ok := c.deptIndex[d.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateDepartment, d.ID)
		}
		c.deptIndex[d.ID] = len(c.departments)
		c.departments = append(c.departments, d)
	}

	for _, doc := range doctors {
		if _, ok := c.doctorIndex[doc.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateDoctor, doc.ID)
		}
		if _, ok := c.deptIndex[doc.DepartmentID]; !ok {
			return nil, fmt.Errorf("%w: doctor %d department %d", ErrUnknownDepartment, doc.ID, doc.DepartmentID)
		}
		for _, slot := range doc.Availability {
			if !ValidTimeSlot(slot) {
				return nil, fmt.Errorf("%w: doctor %d slot %q", ErrBadTimeSlot, doc.ID, slot)
			}
		}
		c.doctorIndex[doc.ID] = len(c.doctors)
		c.doctors = append(c.doctors, doc.clone())
	}

	return c, nil
}

// ValidTimeSlot reports whether s is a zero-padded 24h time of day.
func ValidTimeSlot(s string) bool {
	if len(s) != len(timeSlotLayout) {
		return false
	}
	_, err := time.Parse(timeSlotLayout, s)
	return err == nil
}

func (c *Catalog) ListDepartments() []Department {
	return slices.Clone(c.departments)
}

// ListDoctorsByDepartment never fails; an unknown department yields an empty slice.
func (c *Catalog) ListDoctorsByDepartment(departmentID int64) []Doctor {
	out := []Doctor{}
	for _, doc := range c.doctors {
		if doc.DepartmentID == departmentID {
			out = append(out, doc.clone())
		}
	}
	return out
}

func (c *Catalog) GetDoctor(id int64) (Doctor, bool) {
	i, ok := c.doctorIndex[id]
	if !ok {
		return Doctor{}, false
	}
	return c.doctors[i].clone(), true
}

func (c *Catalog) GetDepartment(id int64) (Department, bool) {
	i, ok := c.deptIndex[id]
	if !ok {
		return Department{}, false
	}
	return c.departments[i], true
}
