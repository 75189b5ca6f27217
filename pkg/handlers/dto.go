package handlers

import (
	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/services"
)

// ============================================================================
// Response Types
// ============================================================================

// PersonResponse is a person with its birth date rendered as YYYY-MM-DD.
type PersonResponse struct {
	*models.Person
	BirthDate string `json:"birth_date,omitempty"`
}

// PartnerResponse is a partner as seen from a member card.
type PartnerResponse struct {
	PersonResponse
	CoupleID     int64  `json:"couple_id"`
	CoupleStatus string `json:"couple_status"`
}

// MemberCardResponse for GET /api/persons/{id}
type MemberCardResponse struct {
	Person   PersonResponse    `json:"person"`
	Partners []PartnerResponse `json:"partners"`
	Children []PersonResponse  `json:"children"`
	Parents  []PersonResponse  `json:"parents"`
}

// SlotResponse is one slot of a weekend. Present lists the household members
// marked present, Others counts people outside the household who are in, and
// Total counts everyone present.
type SlotResponse struct {
	ID         int64   `json:"id"`
	Label      string  `json:"label"`
	Date       string  `json:"date"`
	OrderIndex int     `json:"order_index"`
	Total      int     `json:"total,omitempty"`
	Others     int     `json:"others,omitempty"`
	Present    []int64 `json:"present,omitempty"`
}

// WeekendResponse is one event weekend with its slots.
type WeekendResponse struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Slots     []SlotResponse   `json:"slots"`
	Others    []PersonResponse `json:"others,omitempty"`
}

// AttendanceResponse for GET /api/persons/{id}/attendance
type AttendanceResponse struct {
	Household []PersonResponse  `json:"household"`
	Weekends  []WeekendResponse `json:"weekends"`
}

func toPersonResponse(p *models.Person) PersonResponse {
	return PersonResponse{Person: p, BirthDate: p.BirthDateString()}
}

func toPeopleResponse(people []*models.Person) []PersonResponse {
	result := make([]PersonResponse, 0, len(people))
	for _, p := range people {
		result = append(result, toPersonResponse(p))
	}
	return result
}

func toMemberCardResponse(card *services.MemberCard) MemberCardResponse {
	resp := MemberCardResponse{
		Person:   toPersonResponse(card.Person),
		Partners: make([]PartnerResponse, 0, len(card.Partners)),
		Children: toPeopleResponse(card.Children),
		Parents:  toPeopleResponse(card.Parents),
	}
	for _, p := range card.Partners {
		resp.Partners = append(resp.Partners, PartnerResponse{
			PersonResponse: toPersonResponse(p.Person),
			CoupleID:       p.CoupleID,
			CoupleStatus:   p.Status,
		})
	}
	return resp
}

func toWeekendResponse(ws *models.WeekendSlots) WeekendResponse {
	resp := WeekendResponse{
		ID:        ws.Weekend.ID,
		Name:      ws.Weekend.Name,
		StartDate: ws.Weekend.StartDate.Format(models.DateLayout),
		EndDate:   ws.Weekend.EndDate.Format(models.DateLayout),
		Slots:     make([]SlotResponse, 0, len(ws.Slots)),
	}
	for _, s := range ws.Slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			ID:         s.ID,
			Label:      s.Label,
			Date:       s.Date.Format(models.DateLayout),
			OrderIndex: s.OrderIndex,
		})
	}
	return resp
}

func toCalendarResponse(schedule []*models.WeekendSlots) []WeekendResponse {
	result := make([]WeekendResponse, 0, len(schedule))
	for _, ws := range schedule {
		result = append(result, toWeekendResponse(ws))
	}
	return result
}

func toAttendanceResponse(view *models.AttendanceView) AttendanceResponse {
	resp := AttendanceResponse{
		Household: toPeopleResponse(view.Household),
		Weekends:  make([]WeekendResponse, 0, len(view.Weekends)),
	}
	othersBySlot := make(map[int64]int)
	for key := range view.OthersPresent {
		othersBySlot[key.SlotID]++
	}

	for _, ws := range view.Weekends {
		weekend := toWeekendResponse(ws)
		for i := range weekend.Slots {
			slot := &weekend.Slots[i]
			slot.Total = view.TotalsPerSlot[slot.ID]
			slot.Others = othersBySlot[slot.ID]
			for _, member := range view.Household {
				if view.PresentMap[models.SlotKey{PersonID: member.ID, SlotID: slot.ID}] {
					slot.Present = append(slot.Present, member.ID)
				}
			}
		}
		weekend.Others = toPeopleResponse(view.OthersByWeekend[ws.Weekend.ID])
		resp.Weekends = append(resp.Weekends, weekend)
	}
	return resp
}

// ============================================================================
// Request Types
// ============================================================================

// AttendanceRequest for PUT /api/persons/{id}/attendance
type AttendanceRequest struct {
	Present []models.SlotKey `json:"present"`
}

// ImportRequest for POST /api/import
type ImportRequest struct {
	Rows []models.ImportRow `json:"rows"`
}

func (r *AttendanceRequest) answered() models.SlotKeySet {
	return models.NewSlotKeySet(r.Present...)
}
