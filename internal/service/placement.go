package service

import (
	"sort"

	"github.com/uni-edt/timetable-api/internal/dto"
	"github.com/uni-edt/timetable-api/internal/models"
)

// sessionDemand is one required weekly occurrence of a subject awaiting
// placement. Demands live only for the duration of a generation run.
type sessionDemand struct {
	Subject   models.Subject
	Teacher   models.Teacher
	Groups    []models.Group
	GroupIDs  []string
	SlotCount int
	Headcount int
}

// buildDemands expands resolved subjects into atomic placement demands.
// Single-slot subjects emit one demand per weekly slot; two-slot subjects
// emit floor(total/2) occurrences, with the remainder promoted to a full
// extra occurrence under rounding up and dropped under rounding down.
func buildDemands(subjects []models.ResolvedSubject, rounding dto.RoundingMode) []sessionDemand {
	demands := make([]sessionDemand, 0, len(subjects))
	for _, resolved := range subjects {
		subject := resolved.Subject
		total := subject.WeeklySlotCount
		per := subject.SlotsPerOccurrence
		if total < 1 || per < 1 {
			continue
		}

		occurrences := total
		if per == 2 {
			occurrences = total / 2
			if total%2 != 0 && rounding == dto.RoundingUp {
				occurrences++
			}
		}

		groupIDs := make([]string, 0, len(resolved.Groups))
		for _, g := range resolved.Groups {
			groupIDs = append(groupIDs, g.ID)
		}
		for i := 0; i < occurrences; i++ {
			demands = append(demands, sessionDemand{
				Subject:   subject,
				Teacher:   resolved.Teacher,
				Groups:    resolved.Groups,
				GroupIDs:  groupIDs,
				SlotCount: per,
				Headcount: models.CombinedSize(resolved.Groups),
			})
		}
	}
	return demands
}

// orderDemands sorts hardest-to-place demands first: wide sessions, then
// large combined headcounts, then the scarcer activity types. The sort is
// stable so equal demands keep catalog order, which keeps runs
// reproducible.
func orderDemands(demands []sessionDemand) {
	sort.SliceStable(demands, func(i, j int) bool {
		if demands[i].SlotCount != demands[j].SlotCount {
			return demands[i].SlotCount > demands[j].SlotCount
		}
		if demands[i].Headcount != demands[j].Headcount {
			return demands[i].Headcount > demands[j].Headcount
		}
		return demands[i].Subject.Type.Priority() > demands[j].Subject.Type.Priority()
	})
}

// Occupancy resource kinds.
const (
	resourceTeacher = "teacher"
	resourceGroup   = "group"
	resourceRoom    = "room"
)

type occupancyKey struct {
	Kind string
	ID   string
	Day  models.Day
	Slot int
}

// occupancyIndex tracks taken (resource, day, slot) combinations within a
// single generation run. It carries no locking: one run, one goroutine.
type occupancyIndex struct {
	taken map[occupancyKey]struct{}
}

func newOccupancyIndex() *occupancyIndex {
	return &occupancyIndex{taken: make(map[occupancyKey]struct{})}
}

func (o *occupancyIndex) isFree(kind, id string, day models.Day, slot int) bool {
	_, taken := o.taken[occupancyKey{Kind: kind, ID: id, Day: day, Slot: slot}]
	return !taken
}

// rangeFree reports whether every slot in [start, start+count-1] is free
// for the teacher, the room, and every group of the demand.
func (o *occupancyIndex) rangeFree(demand sessionDemand, roomID string, day models.Day, start, count int) bool {
	for slot := start; slot < start+count; slot++ {
		if !o.isFree(resourceTeacher, demand.Subject.TeacherID, day, slot) {
			return false
		}
		if roomID != "" && !o.isFree(resourceRoom, roomID, day, slot) {
			return false
		}
		for _, groupID := range demand.GroupIDs {
			if !o.isFree(resourceGroup, groupID, day, slot) {
				return false
			}
		}
	}
	return true
}

// reserve marks every slot of a placement for the teacher, the room, and
// every implicated group.
func (o *occupancyIndex) reserve(demand sessionDemand, roomID string, day models.Day, start, count int) {
	for slot := start; slot < start+count; slot++ {
		o.taken[occupancyKey{Kind: resourceTeacher, ID: demand.Subject.TeacherID, Day: day, Slot: slot}] = struct{}{}
		o.taken[occupancyKey{Kind: resourceRoom, ID: roomID, Day: day, Slot: slot}] = struct{}{}
		for _, groupID := range demand.GroupIDs {
			o.taken[occupancyKey{Kind: resourceGroup, ID: groupID, Day: day, Slot: slot}] = struct{}{}
		}
	}
}

// schedulerWeights holds the scoring weights for placement candidates.
type schedulerWeights struct {
	TeacherPreference float64
	RoomFit           float64
	Balance           float64
}

func defaultSchedulerWeights() schedulerWeights {
	return schedulerWeights{TeacherPreference: 3, RoomFit: 1, Balance: 2}
}

// placement is a chosen (day, slot, room) triple for a demand.
type placement struct {
	Day       models.Day
	StartSlot int
	Room      models.Room
	Score     float64
}

// placementSearch runs candidate enumeration and scoring for one
// generation run. dayLoad counts occurrences already placed per subject
// per day, feeding the balance term.
type placementSearch struct {
	rooms   []models.Room
	index   *occupancyIndex
	weights schedulerWeights
	dayLoad map[string]map[models.Day]int
}

func newPlacementSearch(rooms []models.Room, weights schedulerWeights) *placementSearch {
	return &placementSearch{
		rooms:   rooms,
		index:   newOccupancyIndex(),
		weights: weights,
		dayLoad: make(map[string]map[models.Day]int),
	}
}

// findBest enumerates candidates day by day, slot by slot, room by room,
// in fixed order, and returns the highest-scoring feasible triple. Ties
// keep the first candidate encountered, which preserves determinism for a
// fixed catalog order. Returns false when no candidate survives.
func (p *placementSearch) findBest(demand sessionDemand) (placement, bool) {
	var best placement
	found := false

	for _, day := range models.Days {
		for _, start := range models.SlotsFor(day) {
			end := start + demand.SlotCount - 1
			if !models.HasSlot(day, end) {
				continue
			}
			if !p.teacherAvailable(demand.Teacher, day, start, demand.SlotCount) {
				continue
			}
			if !p.index.rangeFree(demand, "", day, start, demand.SlotCount) {
				continue
			}
			for _, room := range p.rooms {
				if !room.Allows(demand.Subject.Type) || room.Capacity < demand.Headcount {
					continue
				}
				if !p.index.rangeFree(demand, room.ID, day, start, demand.SlotCount) {
					continue
				}
				score := p.score(demand, room, day, start)
				if !found || score > best.Score {
					best = placement{Day: day, StartSlot: start, Room: room, Score: score}
					found = true
				}
			}
		}
	}
	return best, found
}

// commit reserves the chosen placement and bumps the subject's per-day
// counter.
func (p *placementSearch) commit(demand sessionDemand, chosen placement) {
	p.index.reserve(demand, chosen.Room.ID, chosen.Day, chosen.StartSlot, demand.SlotCount)
	byDay, ok := p.dayLoad[demand.Subject.ID]
	if !ok {
		byDay = make(map[models.Day]int)
		p.dayLoad[demand.Subject.ID] = byDay
	}
	byDay[chosen.Day]++
}

func (p *placementSearch) teacherAvailable(teacher models.Teacher, day models.Day, start, count int) bool {
	for slot := start; slot < start+count; slot++ {
		if !teacher.Availability.AvailableOn(day, models.PeriodOf(slot)) {
			return false
		}
	}
	return true
}

func (p *placementSearch) score(demand sessionDemand, room models.Room, day models.Day, start int) float64 {
	score := 0.0

	switch demand.Teacher.Preferences.PreferenceFor(day, models.PeriodOf(start)) {
	case models.PreferenceLike:
		score += p.weights.TeacherPreference * 10
	case models.PreferenceAvoid:
		score -= p.weights.TeacherPreference * 5
	}

	headroom := room.Capacity - demand.Headcount
	if headroom < 10 {
		score += p.weights.RoomFit * 5
	} else if headroom < 30 {
		score += p.weights.RoomFit * 2
	}

	score += p.weights.Balance * float64(5-p.dayLoad[demand.Subject.ID][day])

	return score
}
