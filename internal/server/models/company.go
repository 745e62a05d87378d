package models

// Company is a row of the companies table; every user belongs to exactly one.
type Company struct {
	ID   int64
	Name string
}

type CreateCompanyInput struct {
	Name string `json:"name" validate:"required,max=50"`
}

type CompanyView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (c *Company) View() CompanyView {
	return CompanyView{ID: c.ID, Name: c.Name}
}

// CompanyFilter pages through companies ordered by id.
type CompanyFilter struct {
	Limit  int64 `json:"limit" validate:"min=1,max=25"`
	Offset int64 `json:"offset" validate:"min=0"`
}
