package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	depts := c.ListDepartments()
	require.Len(t, depts, 6)
	assert.Equal(t, "Cardiology", depts[0].Name)

	docs := c.ListDoctorsByDepartment(1)
	require.Len(t, docs, 1)
	assert.Equal(t, "Dr. Sarah Johnson", docs[0].Name)
	assert.True(t, docs[0].Offers("09:00"))
	assert.False(t, docs[0].Offers("08:00"))
}

func TestListDoctorsByDepartmentEmpty(t *testing.T) {
	c := Default()

	// Malaria has no doctors and 99 does not exist; neither is an error.
	assert.Empty(t, c.ListDoctorsByDepartment(6))
	assert.NotNil(t, c.ListDoctorsByDepartment(99))
	assert.Empty(t, c.ListDoctorsByDepartment(99))
}

func TestGetDoctor(t *testing.T) {
	c := Default()

	doc, ok := c.GetDoctor(3)
	require.True(t, ok)
	assert.Equal(t, int64(3), doc.DepartmentID)

	_, ok = c.GetDoctor(404)
	assert.False(t, ok)
}

func TestAccessorsReturnCopies(t *testing.T) {
	c := Default()

	doc, _ := c.GetDoctor(1)
	doc.Availability[0] = "23:59"
	depts := c.ListDepartments()
	depts[0].Name = "changed"

	again, _ := c.GetDoctor(1)
	assert.Equal(t, "09:00", again.Availability[0])
	assert.Equal(t, "Cardiology", c.ListDepartments()[0].Name)
}

func TestNewValidation(t *testing.T) {
	depts := []Department{{ID: 1, Name: "Cardiology"}}

	tests := []struct {
		name    string
		depts   []Department
		doctors []Doctor
		want    error
	}{
		{
			name:  "duplicate department",
			depts: []Department{{ID: 1}, {ID: 1}},
			want:  ErrDuplicateDepartment,
		},
		{
			name:    "duplicate doctor",
			depts:   depts,
			doctors: []Doctor{{ID: 1, DepartmentID: 1}, {ID: 1, DepartmentID: 1}},
			want:    ErrDuplicateDoctor,
		},
		{
			name:    "dangling department",
			depts:   depts,
			doctors: []Doctor{{ID: 1, DepartmentID: 2}},
			want:    ErrUnknownDepartment,
		},
		{
			name:    "bad slot",
			depts:   depts,
			doctors: []Doctor{{ID: 1, DepartmentID: 1, Availability: []string{"9am"}}},
			want:    ErrBadTimeSlot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.depts, tt.doctors)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidTimeSlot(t *testing.T) {
	assert.True(t, ValidTimeSlot("09:00"))
	assert.True(t, ValidTimeSlot("23:30"))
	assert.False(t, ValidTimeSlot("9:00"))
	assert.False(t, ValidTimeSlot("24:00"))
	assert.False(t, ValidTimeSlot(""))
}
