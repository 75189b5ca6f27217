package models

// Import row kinds, processed in file order.
const (
	ImportKindMember       = "member"
	ImportKindPartner      = "partner"
	ImportKindChild        = "child"
	ImportKindChildPartner = "child_partner"
	ImportKindGrandchild   = "grandchild"
)

// ImportRow is one already-parsed row of a bulk family import.
type ImportRow struct {
	Kind      string `json:"kind"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date,omitempty"` // YYYY-MM-DD or DD/MM/YYYY
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Branch    string `json:"branch,omitempty"`
}

// ImportResult summarises an import run.
type ImportResult struct {
	Rows        int `json:"rows"`
	Created     int `json:"created"`
	Matched     int `json:"matched"`
	Couples     int `json:"couples"`
	ParentLinks int `json:"parent_links"`
}

// PersonMatch is the identity tuple used to recognise an existing person during import.
// Nil fields match NULL columns.
type PersonMatch struct {
	FirstName string
	Branch    *string
	Email     *string
	Phone     *string
}
