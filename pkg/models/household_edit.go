package models

// PartnerPatch is a person patch for a partner of the household owner,
// plus the status of the couple to record.
type PartnerPatch struct {
	PersonPatch
	CoupleStatus string `json:"couple_status,omitempty"`
}

// ParentChildRef is a parent -> child link whose endpoints may be temporary (negative)
// ids from the same edit batch, the owner's own id, or existing person ids.
type ParentChildRef struct {
	ParentID int64 `json:"parent_id"`
	ChildID  int64 `json:"child_id"`
}

// HouseholdEdit is one batch submitted from the household edit form.
type HouseholdEdit struct {
	Owner       PersonPatch      `json:"owner"`
	Partners    []PartnerPatch   `json:"partners"`
	Children    []PersonPatch    `json:"children"`
	ParentChild []ParentChildRef `json:"parent_child"`

	// OwnerRef is the caller-side id the batch used for the owner before the
	// owner id was pinned to an existing person. Zero means Owner.ID is the reference.
	OwnerRef int64 `json:"-"`
}

// PinOwner replaces the owner's id with an existing person id, keeping the id the
// batch used for the owner so links that reference it still resolve to the owner.
func (e *HouseholdEdit) PinOwner(id int64) {
	if e.OwnerRef == 0 {
		e.OwnerRef = e.Owner.RefID()
	}
	e.Owner.ID = &id
}

// HouseholdEditResult reports what an applied edit resolved to.
type HouseholdEditResult struct {
	OwnerID int64 `json:"owner_id"`
	// IDMap maps every temporary (non-positive) id of the batch to the real person id.
	IDMap map[int64]int64 `json:"id_map"`
	// ParentFallbacks counts links whose parent could not be resolved and was
	// attributed to the owner.
	ParentFallbacks int `json:"parent_fallbacks"`
	LinksCreated    int `json:"links_created"`
}
