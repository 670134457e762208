package catalog

// DefaultDepartments is the reference set the clinic launches with.
func DefaultDepartments() []Department {
	return []Department{
		{ID: 1, Name: "Cardiology"},
		{ID: 2, Name: "Neurology"},
		{ID: 3, Name: "Orthopedics"},
		{ID: 4, Name: "Pediatrics"},
		{ID: 5, Name: "Dermatology"},
		{ID: 6, Name: "Malaria"},
	}
}

func DefaultDoctors() []Doctor {
	return []Doctor{
		{ID: 1, Name: "Dr. Sarah Johnson", Specialization: "Cardiologist", DepartmentID: 1,
			Availability: []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}},
		{ID: 2, Name: "Dr. Michael Chen", Specialization: "Neurologist", DepartmentID: 2,
			Availability: []string{"08:00", "09:00", "10:00", "13:00", "14:00", "15:00"}},
		{ID: 3, Name: "Dr. Emily Rodriguez", Specialization: "Orthopedic Surgeon", DepartmentID: 3,
			Availability: []string{"09:00", "11:00", "13:00", "15:00", "16:00"}},
		{ID: 4, Name: "Dr. David Kim", Specialization: "Pediatrician", DepartmentID: 4,
			Availability: []string{"08:00", "09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}},
		{ID: 5, Name: "Dr. Lisa Anderson", Specialization: "Dermatologist", DepartmentID: 5,
			Availability: []string{"10:00", "11:00", "14:00", "15:00", "16:00"}},
	}
}

// Default builds the catalog from the built-in reference set.
func Default() *Catalog {
	c, err := New(DefaultDepartments(), DefaultDoctors())
	if err != nil {
		panic("catalog: built-in reference data is invalid: " + err.Error())
	}
	return c
}
