package service

import (
	"fmt"
	"strconv"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// DefaultSeatingSeed keeps allocations reproducible when no seed is configured.
const DefaultSeatingSeed int64 = 42

const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// seatRandom is the single source of randomness for one allocation run.
type seatRandom interface {
	Intn(n int) int
}

// lcgRandom is a small linear congruential generator. Reproducible, not secure.
type lcgRandom struct {
	state int64
}

func newSeatRandom(seed int64) *lcgRandom {
	state := seed % lcgModulus
	if state < 0 {
		state += lcgModulus
	}
	return &lcgRandom{state: state}
}

func (r *lcgRandom) float64() float64 {
	r.state = (r.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(r.state) / lcgModulus
}

// Intn returns a value in [0, n).
func (r *lcgRandom) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return int(r.float64() * float64(n))
}

// departmentPools holds the shuffled roster per department with read cursors.
type departmentPools struct {
	order   []string
	queues  map[string][]models.Student
	cursors map[string]int
	rng     seatRandom
}

func newDepartmentPools(roster []models.Student, rng seatRandom) *departmentPools {
	p := &departmentPools{
		order:   make([]string, 0),
		queues:  make(map[string][]models.Student),
		cursors: make(map[string]int),
		rng:     rng,
	}
	for _, st := range roster {
		if _, ok := p.queues[st.Department]; !ok {
			p.order = append(p.order, st.Department)
		}
		p.queues[st.Department] = append(p.queues[st.Department], st)
	}
	for _, dept := range p.order {
		shuffleStudents(p.queues[dept], rng)
	}
	return p
}

func shuffleStudents(list []models.Student, rng seatRandom) {
	for i := len(list) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		list[i], list[j] = list[j], list[i]
	}
}

func (p *departmentPools) exhausted() bool {
	for _, dept := range p.order {
		if p.cursors[dept] < len(p.queues[dept]) {
			return false
		}
	}
	return true
}

// pick selects the department for the next seat. Departments not yet seated in
// the room are preferred until the room holds two departments.
func (p *departmentPools) pick(usedInRoom map[string]struct{}, exclude string) (string, bool) {
	candidates := make([]string, 0, len(p.order))
	for _, dept := range p.order {
		if dept == exclude || p.cursors[dept] >= len(p.queues[dept]) {
			continue
		}
		candidates = append(candidates, dept)
	}
	if len(candidates) == 0 {
		return "", false
	}
	if len(usedInRoom) < 2 {
		fresh := make([]string, 0, len(candidates))
		for _, dept := range candidates {
			if _, used := usedInRoom[dept]; !used {
				fresh = append(fresh, dept)
			}
		}
		if len(fresh) > 0 {
			candidates = fresh
		}
	}
	return candidates[p.rng.Intn(len(candidates))], true
}

func (p *departmentPools) next(dept string) models.Student {
	st := p.queues[dept][p.cursors[dept]]
	p.cursors[dept]++
	return st
}

// allocateSeats fills rooms in order. Semester rooms take one student per seat;
// Internal rooms seat two students per bench from different departments where possible.
func allocateSeats(examType models.ExamType, roster []models.Student, rooms []models.Room, rng seatRandom) models.SeatingResult {
	pools := newDepartmentPools(roster, rng)
	assignments := make([]models.SeatAssignment, 0, len(roster))
	occupancy := make([]models.RoomOccupancy, 0, len(rooms))
	departments := make(map[string]struct{})
	benches := 0

	seat := func(room models.Room, st models.Student, label string, bench *int) {
		assignments = append(assignments, models.SeatAssignment{
			StudentID:      st.ID,
			RegisterNumber: st.RegisterNumber,
			RoomNumber:     room.RoomNumber,
			SeatNumber:     label,
			BenchNumber:    bench,
			Floor:          room.Floor,
			Building:       room.Building,
			Department:     st.Department,
		})
		departments[st.Department] = struct{}{}
	}

	for _, room := range rooms {
		if pools.exhausted() {
			break
		}
		usedInRoom := make(map[string]struct{})
		occupied := 0

		for pos := 1; pos <= room.Capacity; pos++ {
			left, ok := pools.pick(usedInRoom, "")
			if !ok {
				break
			}
			usedInRoom[left] = struct{}{}

			if examType != models.ExamTypeInternal {
				seat(room, pools.next(left), strconv.Itoa(pos), nil)
				occupied++
				continue
			}

			bench := pos
			seat(room, pools.next(left), fmt.Sprintf("B%d-L", pos), &bench)
			occupied++
			benches++
			if right, ok := pools.pick(usedInRoom, left); ok {
				usedInRoom[right] = struct{}{}
				seat(room, pools.next(right), fmt.Sprintf("B%d-R", pos), &bench)
				occupied++
			}
		}

		if occupied > 0 {
			occupancy = append(occupancy, models.RoomOccupancy{
				RoomNumber:  room.RoomNumber,
				Capacity:    room.Capacity,
				Occupied:    occupied,
				Departments: len(usedInRoom),
			})
		}
	}

	summary := models.SeatingSummary{
		TotalStudents:  len(roster),
		TotalAllocated: len(assignments),
		Unallocated:    len(roster) - len(assignments),
		RoomsUsed:      len(occupancy),
		Departments:    len(departments),
		Rooms:          occupancy,
	}
	if examType == models.ExamTypeInternal {
		summary.BenchesUsed = benches
	}
	return models.SeatingResult{Assignments: assignments, Summary: summary}
}
